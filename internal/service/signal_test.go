package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

func newTestSignal(t *testing.T) (*SignalService, *miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewSignalService(rdb), mr, rdb
}

func testEvent() domain.ClaimEvent {
	msg := "standup"
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return domain.ClaimEvent{
		ID:   "evt-1",
		Type: domain.ClaimEventCreated,
		Claim: domain.TimeClaim{
			ID:      7,
			OwnerID: "U1",
			Start:   start,
			End:     start.Add(time.Hour),
			Message: &msg,
		}.Summary(),
		Timestamp: start,
	}
}

func TestSignalServicePublishClaimEvent(t *testing.T) {
	signal, _, rdb := newTestSignal(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, domain.ClaimEventChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, signal.PublishClaimEvent(ctx, testEvent()))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.NotContains(t, msg.Payload, "ownerId")
	assert.NotContains(t, msg.Payload, "U1")

	var got domain.ClaimEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "evt-1", got.ID)
	assert.Equal(t, domain.ClaimEventCreated, got.Type)
	assert.Equal(t, int64(7), got.Claim.ID)
}

func TestSignalServiceRealtime(t *testing.T) {
	signal, mr, _ := newTestSignal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	output := make(chan domain.ClaimEvent)
	go signal.Realtime(ctx, output)

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(domain.ClaimEventChannel)[domain.ClaimEventChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	// malformed payloads are dropped without ending the feed
	mr.Publish(domain.ClaimEventChannel, "not json")
	require.NoError(t, signal.PublishClaimEvent(context.Background(), testEvent()))

	select {
	case event := <-output:
		assert.Equal(t, "evt-1", event.ID)
		assert.True(t, event.Claim.End.Sub(event.Claim.Start) == time.Hour)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not forwarded")
	}

	cancel()
	select {
	case _, ok := <-output:
		assert.False(t, ok, "output must be closed once the feed stops")
	case <-time.After(2 * time.Second):
		t.Fatal("output was not closed")
	}
}
