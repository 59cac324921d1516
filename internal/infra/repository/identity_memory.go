package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

// MemoryIdentityRepository backs the identity lookups when storage is "memory".
type MemoryIdentityRepository struct {
	mu      sync.RWMutex
	byEmail map[string]domain.Identity
}

func NewMemoryIdentityRepository() *MemoryIdentityRepository {
	return &MemoryIdentityRepository{byEmail: map[string]domain.Identity{}}
}

func (r *MemoryIdentityRepository) Remember(ctx context.Context, identity domain.Identity) error {
	email := domain.NormalizeEmail(identity.Email)
	if identity.ID == "" || email == "" {
		return fmt.Errorf("identity requires id and email")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.byEmail {
		if v.ID == identity.ID {
			delete(r.byEmail, k)
		}
	}
	r.byEmail[email] = domain.Identity{ID: identity.ID, Email: email}
	return nil
}

func (r *MemoryIdentityRepository) ResolveIdentifier(ctx context.Context, identifier string) (domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byEmail[domain.NormalizeEmail(identifier)]
	if !ok {
		return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
	}
	return identity, nil
}
