package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
	"github.com/rolfenpp/ChronoBit-API/internal/infra/database/models"
)

// claimWriteLockKey names the transaction-scoped advisory lock that serialises claim inserts
// across every process sharing the database.
var claimWriteLockKey = int64(xxh3.HashString("chronobit:time_claims:write"))

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) Insert(ctx context.Context, claim domain.TimeClaim) (domain.TimeClaim, error) {
	model := models.TimeClaim{
		OwnerID:  claim.OwnerID,
		StartAt:  claim.Start.UTC(),
		EndAt:    claim.End.UTC(),
		Message:  claim.Message,
		ImageURL: claim.ImageURL,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", claimWriteLockKey).Error; err != nil {
			return errors.Wrap(err, "acquire claim write lock")
		}

		var count int64
		err := overlapping(tx, model.StartAt, model.EndAt).
			Model(&models.TimeClaim{}).
			Count(&count).Error
		if err != nil {
			return errors.Wrap(err, "count overlapping claims")
		}
		if count > 0 {
			return domain.ConflictError{Range: claim.Range()}
		}

		return errors.Wrap(tx.Create(&model).Error, "create claim")
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.TimeClaim{}, err
		}
		return domain.TimeClaim{}, domain.StoreError{Op: "insert", Err: err}
	}

	return toDomainClaim(model), nil
}

func (r *ClaimRepository) FindByID(ctx context.Context, id int64) (domain.TimeClaim, error) {
	var model models.TimeClaim
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
		}
		return domain.TimeClaim{}, domain.StoreError{Op: "find by id", Err: err}
	}
	return toDomainClaim(model), nil
}

func (r *ClaimRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.TimeClaim, error) {
	var rows []models.TimeClaim
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("start_at").
		Find(&rows).Error
	if err != nil {
		return nil, domain.StoreError{Op: "find by owner", Err: err}
	}
	return toDomainClaims(rows), nil
}

func (r *ClaimRepository) FindOverlapping(ctx context.Context, rng domain.Range) ([]domain.TimeClaim, error) {
	var rows []models.TimeClaim
	err := overlapping(r.db.WithContext(ctx), rng.Start.UTC(), rng.End.UTC()).
		Order("start_at").
		Find(&rows).Error
	if err != nil {
		return nil, domain.StoreError{Op: "find overlapping", Err: err}
	}
	return toDomainClaims(rows), nil
}

// UpdateOwner rewrites the owner only while it still equals expectedOwner.
func (r *ClaimRepository) UpdateOwner(ctx context.Context, id int64, expectedOwner, newOwner string) (domain.TimeClaim, error) {
	var model models.TimeClaim
	result := r.db.WithContext(ctx).
		Model(&model).
		Clauses(clause.Returning{}).
		Where("id = ? AND owner_id = ?", id, expectedOwner).
		Update("owner_id", newOwner)
	if result.Error != nil {
		return domain.TimeClaim{}, domain.StoreError{Op: "update owner", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return domain.TimeClaim{}, domain.NotFoundError{Resource: "claim"}
	}
	return toDomainClaim(model), nil
}

func (r *ClaimRepository) ListAll(ctx context.Context) ([]domain.TimeClaim, error) {
	var rows []models.TimeClaim
	err := r.db.WithContext(ctx).
		Order("start_at").
		Find(&rows).Error
	if err != nil {
		return nil, domain.StoreError{Op: "list", Err: err}
	}
	return toDomainClaims(rows), nil
}

// overlapping applies the half-open overlap rule: start_a < end_b AND start_b < end_a.
func overlapping(db *gorm.DB, start, end any) *gorm.DB {
	return db.Where("start_at < ? AND end_at > ?", end, start)
}

func toDomainClaim(m models.TimeClaim) domain.TimeClaim {
	return domain.TimeClaim{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Start:     m.StartAt.UTC(),
		End:       m.EndAt.UTC(),
		Message:   m.Message,
		ImageURL:  m.ImageURL,
		CreatedAt: m.CDate.UTC(),
	}
}

func toDomainClaims(rows []models.TimeClaim) []domain.TimeClaim {
	out := make([]domain.TimeClaim, 0, len(rows))
	for _, m := range rows {
		out = append(out, toDomainClaim(m))
	}
	return out
}
