package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

var tracer = otel.Tracer("usecase")

// CreateClaimInput is the validated request of an authenticated owner.
type CreateClaimInput struct {
	OwnerID  string
	Start    time.Time
	End      time.Time
	Message  *string
	ImageURL *string
}

type ClaimUsecase struct {
	repo      ClaimRepository
	identity  IdentityGateway
	publisher ClaimPublisher

	// writeMu makes check-then-insert atomic against other creations in this process.
	writeMu sync.Mutex
}

// NewClaimUsecase wires the service. publisher may be nil.
func NewClaimUsecase(repo ClaimRepository, identity IdentityGateway, publisher ClaimPublisher) *ClaimUsecase {
	return &ClaimUsecase{
		repo:      repo,
		identity:  identity,
		publisher: publisher,
	}
}

func (uc *ClaimUsecase) CreateClaim(ctx context.Context, input CreateClaimInput) (domain.TimeClaim, error) {
	ctx, span := tracer.Start(ctx, "Claim.Usecase.CreateClaim")
	defer span.End()

	r, err := domain.NewRange(input.Start, input.End)
	if err != nil {
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}

	uc.writeMu.Lock()
	defer uc.writeMu.Unlock()

	existing, err := uc.repo.FindOverlapping(ctx, r)
	if err != nil {
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}

	ok, err := domain.IsClaimable(r, ranges(existing))
	if err != nil {
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}
	if !ok {
		return domain.TimeClaim{}, domain.ConflictError{Range: r}
	}

	created, err := uc.repo.Insert(ctx, domain.TimeClaim{
		OwnerID:  input.OwnerID,
		Start:    r.Start,
		End:      r.End,
		Message:  input.Message,
		ImageURL: input.ImageURL,
	})
	if err != nil {
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}
	span.SetAttributes(attribute.Int64("ClaimId", created.ID))

	uc.publish(ctx, domain.ClaimEventCreated, created)
	return created, nil
}

// ListAvailability returns every stored range overlapping [from, to) plus the free gaps between them.
func (uc *ClaimUsecase) ListAvailability(ctx context.Context, from, to time.Time) (domain.Availability, error) {
	ctx, span := tracer.Start(ctx, "Claim.Usecase.ListAvailability")
	defer span.End()

	query, err := domain.NewRange(from, to)
	if err != nil {
		return domain.Availability{}, err
	}

	existing, err := uc.repo.FindOverlapping(ctx, query)
	if err != nil {
		span.RecordError(err)
		return domain.Availability{}, err
	}

	partitioned, err := domain.Partition(query, ranges(existing))
	if err != nil {
		span.RecordError(err)
		return domain.Availability{}, err
	}

	free, err := domain.FreeGaps(query, partitioned.Claimed)
	if err != nil {
		span.RecordError(err)
		return domain.Availability{}, err
	}

	return domain.Availability{
		From:    query.Start,
		To:      query.End,
		Claimed: partitioned.Claimed,
		Free:    free,
	}, nil
}

func (uc *ClaimUsecase) ListClaimsForUser(ctx context.Context, ownerID string) ([]domain.TimeClaim, error) {
	ctx, span := tracer.Start(ctx, "Claim.Usecase.ListClaimsForUser")
	defer span.End()

	return uc.repo.FindByOwner(ctx, ownerID)
}

// ListAllClaims is readable anonymously, so owners are stripped.
func (uc *ClaimUsecase) ListAllClaims(ctx context.Context) ([]domain.ClaimSummary, error) {
	ctx, span := tracer.Start(ctx, "Claim.Usecase.ListAllClaims")
	defer span.End()

	claims, err := uc.repo.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	summaries := make([]domain.ClaimSummary, 0, len(claims))
	for _, c := range claims {
		summaries = append(summaries, c.Summary())
	}
	return summaries, nil
}

// TransferClaim hands a claim owned by requesterID to the identity behind target.
// A missing claim and a claim owned by someone else both report domain.NotFoundError.
func (uc *ClaimUsecase) TransferClaim(ctx context.Context, claimID int64, requesterID, target string) (domain.TimeClaim, error) {
	ctx, span := tracer.Start(ctx, "Claim.Usecase.TransferClaim")
	defer span.End()
	span.SetAttributes(attribute.Int64("ClaimId", claimID))

	claim, err := uc.repo.FindByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
		}
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}
	if claim.OwnerID != requesterID {
		return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
	}

	identity, err := uc.identity.ResolveIdentifier(ctx, target)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TimeClaim{}, domain.TargetNotFoundError{Identifier: target}
		}
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}

	updated, err := uc.repo.UpdateOwner(ctx, claimID, requesterID, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
		}
		span.RecordError(err)
		return domain.TimeClaim{}, err
	}

	uc.publish(ctx, domain.ClaimEventTransferred, updated)
	return updated, nil
}

// SummarizeClaims aggregates the owner's claims. Owners without claims get domain.NotFoundError.
func (uc *ClaimUsecase) SummarizeClaims(ctx context.Context, ownerID string) (domain.ClaimStats, error) {
	ctx, span := tracer.Start(ctx, "Claim.Usecase.SummarizeClaims")
	defer span.End()

	claims, err := uc.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return domain.ClaimStats{}, err
	}
	if len(claims) == 0 {
		return domain.ClaimStats{}, domain.NotFoundError{Resource: "time claims"}
	}

	stats := domain.ClaimStats{
		OwnerID:     ownerID,
		TotalClaims: len(claims),
	}
	var total time.Duration
	for _, c := range claims {
		total += c.Range().Duration()
		if stats.First == nil || c.Start.Before(*stats.First) {
			start := c.Start
			stats.First = &start
		}
		if stats.Last == nil || c.End.After(*stats.Last) {
			end := c.End
			stats.Last = &end
		}
	}
	stats.TotalHours = total.Hours()
	stats.AverageHours = stats.TotalHours / float64(len(claims))

	return stats, nil
}

// publish runs after the write committed, so failures are only logged.
func (uc *ClaimUsecase) publish(ctx context.Context, typ domain.ClaimEventType, claim domain.TimeClaim) {
	if uc.publisher == nil {
		return
	}

	event := domain.ClaimEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Claim:     claim.Summary(),
		Timestamp: time.Now().UTC(),
	}
	if err := uc.publisher.PublishClaimEvent(ctx, event); err != nil {
		slog.ErrorContext(
			ctx, "failed to publish claim event",
			slog.String("error", err.Error()),
			slog.String("type", string(typ)),
			slog.Int64("claim", claim.ID),
			slog.String("module", "usecase"),
		)
	}
}

func ranges(claims []domain.TimeClaim) []domain.Range {
	out := make([]domain.Range, 0, len(claims))
	for _, c := range claims {
		out = append(out, c.Range())
	}
	return out
}
