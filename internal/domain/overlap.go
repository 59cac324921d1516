package domain

import (
	"slices"
)

// Partitioned is the answer to "what is taken in this window".
type Partitioned struct {
	Query   Range   `json:"query"`
	Claimed []Range `json:"claimed"`
}

// IsClaimable reports whether candidate overlaps none of existing.
func IsClaimable(candidate Range, existing []Range) (bool, error) {
	if err := candidate.Validate(); err != nil {
		return false, err
	}
	for _, r := range existing {
		if err := r.Validate(); err != nil {
			return false, err
		}
		if candidate.Overlaps(r) {
			return false, nil
		}
	}
	return true, nil
}

// Partition returns the elements of existing that intersect query, unclipped and in input order.
func Partition(query Range, existing []Range) (Partitioned, error) {
	if err := query.Validate(); err != nil {
		return Partitioned{}, err
	}
	claimed := make([]Range, 0, len(existing))
	for _, r := range existing {
		if err := r.Validate(); err != nil {
			return Partitioned{}, err
		}
		if query.Overlaps(r) {
			claimed = append(claimed, r)
		}
	}
	return Partitioned{Query: query, Claimed: claimed}, nil
}

// FreeGaps returns the sub-ranges of query not covered by any of claimed, in ascending order.
func FreeGaps(query Range, claimed []Range) ([]Range, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	sorted := slices.Clone(claimed)
	slices.SortFunc(sorted, func(a, b Range) int {
		return a.Start.Compare(b.Start)
	})

	free := []Range{}
	cursor := query.Start
	for _, r := range sorted {
		if !query.Overlaps(r) {
			continue
		}
		c := r.Clip(query)
		if cursor.Before(c.Start) {
			free = append(free, Range{Start: cursor, End: c.Start})
		}
		if c.End.After(cursor) {
			cursor = c.End
		}
	}
	if cursor.Before(query.End) {
		free = append(free, Range{Start: cursor, End: query.End})
	}
	return free, nil
}
