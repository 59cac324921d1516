package domain

import "time"

type ClaimEventType string

const (
	ClaimEventCreated     ClaimEventType = "claim.created"
	ClaimEventTransferred ClaimEventType = "claim.transferred"
)

// ClaimEvent is broadcast after a claim write commits. It never carries owner ids.
type ClaimEvent struct {
	ID        string         `json:"id"`
	Type      ClaimEventType `json:"type"`
	Claim     ClaimSummary   `json:"claim"`
	Timestamp time.Time      `json:"timestamp"`
}
