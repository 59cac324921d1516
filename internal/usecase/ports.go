package usecase

import (
	"context"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

// ClaimRepository defines durable storage for claims.
//
// Insert must re-check overlap and insert as one atomic step, failing with
// domain.ConflictError when another claim overlaps at commit time.
// UpdateOwner is a compare-and-swap on the owner and fails with
// domain.NotFoundError when no claim with that id is held by expectedOwner.
// Persistence failures are reported as domain.StoreError.
type ClaimRepository interface {
	Insert(ctx context.Context, claim domain.TimeClaim) (domain.TimeClaim, error)
	FindByID(ctx context.Context, id int64) (domain.TimeClaim, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.TimeClaim, error)
	FindOverlapping(ctx context.Context, r domain.Range) ([]domain.TimeClaim, error)
	UpdateOwner(ctx context.Context, id int64, expectedOwner, newOwner string) (domain.TimeClaim, error)
	ListAll(ctx context.Context) ([]domain.TimeClaim, error)
}

// IdentityGateway resolves transfer targets. Unknown identifiers yield domain.NotFoundError.
type IdentityGateway interface {
	ResolveIdentifier(ctx context.Context, identifier string) (domain.Identity, error)
}

// ClaimPublisher broadcasts committed claim writes.
type ClaimPublisher interface {
	PublishClaimEvent(ctx context.Context, event domain.ClaimEvent) error
}
