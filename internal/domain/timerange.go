package domain

import (
	"time"
)

// Range is a half-open interval [Start, End).
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange normalises both instants to UTC and rejects empty or inverted intervals.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: start.UTC(), End: end.UTC()}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return InvalidRangeError{Reason: "start and end are required"}
	}
	if !r.Start.Before(r.End) {
		return InvalidRangeError{Reason: "end time must be after start time"}
	}
	return nil
}

// Overlaps reports whether r and o share a strictly positive duration.
// Touching endpoints do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Clip returns the part of r that lies inside bounds. Callers must check Overlaps first.
func (r Range) Clip(bounds Range) Range {
	out := r
	if out.Start.Before(bounds.Start) {
		out.Start = bounds.Start
	}
	if out.End.After(bounds.End) {
		out.End = bounds.End
	}
	return out
}
