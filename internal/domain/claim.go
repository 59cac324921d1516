package domain

import "time"

// TimeClaim is an exclusive reservation of a contiguous interval by one identity.
type TimeClaim struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Message   *string   `json:"message"`
	ImageURL  *string   `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c TimeClaim) Range() Range {
	return Range{Start: c.Start, End: c.End}
}

// Summary drops the owner so the claim can be listed publicly.
func (c TimeClaim) Summary() ClaimSummary {
	return ClaimSummary{
		ID:       c.ID,
		Start:    c.Start,
		End:      c.End,
		Message:  c.Message,
		ImageURL: c.ImageURL,
	}
}

// ClaimSummary is the anonymous projection of a TimeClaim.
type ClaimSummary struct {
	ID       int64     `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Message  *string   `json:"message"`
	ImageURL *string   `json:"imageUrl"`
}

// Availability answers an availability query. Claimed holds the stored ranges as-is,
// Free the uncovered parts of [From, To).
type Availability struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Claimed []Range   `json:"claimed"`
	Free    []Range   `json:"free"`
}

// ClaimStats aggregates one owner's claims.
type ClaimStats struct {
	OwnerID      string     `json:"ownerId"`
	TotalClaims  int        `json:"totalClaims"`
	TotalHours   float64    `json:"totalHours"`
	AverageHours float64    `json:"averageHoursPerClaim"`
	First        *time.Time `json:"first,omitempty"`
	Last         *time.Time `json:"last,omitempty"`
}
