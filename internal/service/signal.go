package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

type SignalService struct {
	rdb     *redis.Client
	channel string
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb:     redisClient,
		channel: domain.ClaimEventChannel,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event domain.ClaimEvent) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err

	}

	return nil
}

func (s *SignalService) PublishClaimEvent(ctx context.Context, event domain.ClaimEvent) error {
	return s.Publish(ctx, s.channel, event)
}

// Realtime forwards claim events to output until ctx is done or the subscription ends.
// output is closed on return.
func (s *SignalService) Realtime(ctx context.Context, output chan<- domain.ClaimEvent) {
	defer close(output)

	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event domain.ClaimEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(
					ctx, "dropping malformed claim event",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
