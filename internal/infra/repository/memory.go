package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

// MemoryClaimRepository keeps claims in process memory. Writers hold the lock for the
// whole check-then-insert step, readers share it and always see whole records.
type MemoryClaimRepository struct {
	mu     sync.RWMutex
	nextID int64
	claims map[int64]domain.TimeClaim
	now    func() time.Time
}

func NewMemoryClaimRepository() *MemoryClaimRepository {
	return &MemoryClaimRepository{
		claims: map[int64]domain.TimeClaim{},
		now:    time.Now,
	}
}

func (r *MemoryClaimRepository) Insert(ctx context.Context, claim domain.TimeClaim) (domain.TimeClaim, error) {
	if err := ctx.Err(); err != nil {
		return domain.TimeClaim{}, domain.StoreError{Op: "insert", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := claim.Range()
	for _, existing := range r.claims {
		if existing.Range().Overlaps(candidate) {
			return domain.TimeClaim{}, domain.ConflictError{Range: candidate}
		}
	}

	r.nextID++
	claim.ID = r.nextID
	claim.Start = claim.Start.UTC()
	claim.End = claim.End.UTC()
	claim.CreatedAt = r.now().UTC()
	r.claims[claim.ID] = claim

	return claim, nil
}

func (r *MemoryClaimRepository) FindByID(ctx context.Context, id int64) (domain.TimeClaim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[id]
	if !ok {
		return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
	}
	return claim, nil
}

func (r *MemoryClaimRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.TimeClaim, error) {
	return r.collect(func(c domain.TimeClaim) bool {
		return c.OwnerID == ownerID
	}), nil
}

func (r *MemoryClaimRepository) FindOverlapping(ctx context.Context, rng domain.Range) ([]domain.TimeClaim, error) {
	return r.collect(func(c domain.TimeClaim) bool {
		return c.Range().Overlaps(rng)
	}), nil
}

func (r *MemoryClaimRepository) UpdateOwner(ctx context.Context, id int64, expectedOwner, newOwner string) (domain.TimeClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[id]
	if !ok || claim.OwnerID != expectedOwner {
		return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
	}
	claim.OwnerID = newOwner
	r.claims[id] = claim

	return claim, nil
}

func (r *MemoryClaimRepository) ListAll(ctx context.Context) ([]domain.TimeClaim, error) {
	return r.collect(func(domain.TimeClaim) bool { return true }), nil
}

// collect returns matching claims ordered by start, like the postgres repository.
func (r *MemoryClaimRepository) collect(keep func(domain.TimeClaim) bool) []domain.TimeClaim {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.TimeClaim{}
	for _, c := range r.claims {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
