package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
	"github.com/rolfenpp/ChronoBit-API/internal/infra/database/models"
)

const identityTTL = 5 * time.Minute

// IdentityRepository resolves emails to identities through an in-process cache,
// an optional shared memcached and finally the identities table.
type IdentityRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	mc    *memcache.Client
}

// NewIdentityRepository builds the repository. mc may be nil.
func NewIdentityRepository(db *gorm.DB, mc *memcache.Client) *IdentityRepository {
	return &IdentityRepository{
		db:    db,
		cache: cache.New(identityTTL, 2*identityTTL),
		mc:    mc,
	}
}

// Remember upserts an identity seen on an authenticated request.
// An email belongs to the identity that most recently presented it: a previous holder loses it,
// and the identity's former email stops resolving.
func (r *IdentityRepository) Remember(ctx context.Context, identity domain.Identity) error {
	email := domain.NormalizeEmail(identity.Email)
	if identity.ID == "" || email == "" {
		return fmt.Errorf("identity requires id and email")
	}

	if cached, ok := r.cache.Get(email); ok && cached.(domain.Identity).ID == identity.ID {
		return nil
	}

	var previous string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []models.Identity
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", identity.ID).
			Limit(1).
			Find(&current).Error
		if err != nil {
			return errors.Wrap(err, "lock identity")
		}
		if len(current) > 0 {
			previous = current[0].Email
		}

		err = tx.Where("email = ? AND id <> ?", email, identity.ID).
			Delete(&models.Identity{}).Error
		if err != nil {
			return errors.Wrap(err, "release email from previous holder")
		}

		model := models.Identity{
			ID:    identity.ID,
			Email: email,
			MDate: time.Now(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "m_date"}),
		}).Create(&model).Error
	})
	if err != nil {
		return errors.Wrap(err, "IdentityRepository.Remember")
	}

	if previous != "" && previous != email {
		r.evict(previous)
	}
	r.store(domain.Identity{ID: identity.ID, Email: email})
	return nil
}

func (r *IdentityRepository) ResolveIdentifier(ctx context.Context, identifier string) (domain.Identity, error) {
	email := domain.NormalizeEmail(identifier)
	if email == "" {
		return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
	}

	if cached, ok := r.cache.Get(email); ok {
		return cached.(domain.Identity), nil
	}

	if r.mc != nil {
		item, err := r.mc.Get(memcacheKey(email))
		if err == nil {
			var identity domain.Identity
			if err := json.Unmarshal(item.Value, &identity); err == nil {
				r.cache.Set(email, identity, cache.DefaultExpiration)
				return identity, nil
			}
		} else if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.WarnContext(
				ctx, "memcached lookup failed",
				slog.String("error", err.Error()),
				slog.String("module", "identity"),
			)
		}
	}

	var model models.Identity
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
		}
		return domain.Identity{}, domain.StoreError{Op: "resolve identity", Err: err}
	}

	identity := domain.Identity{ID: model.ID, Email: model.Email}
	r.store(identity)
	return identity, nil
}

func (r *IdentityRepository) store(identity domain.Identity) {
	r.cache.Set(identity.Email, identity, cache.DefaultExpiration)
	if r.mc == nil {
		return
	}

	value, err := json.Marshal(identity)
	if err != nil {
		return
	}
	err = r.mc.Set(&memcache.Item{
		Key:        memcacheKey(identity.Email),
		Value:      value,
		Expiration: int32(identityTTL.Seconds()),
	})
	if err != nil {
		slog.Warn(
			"memcached store failed",
			slog.String("error", err.Error()),
			slog.String("module", "identity"),
		)
	}
}

func (r *IdentityRepository) evict(email string) {
	r.cache.Delete(email)
	if r.mc == nil {
		return
	}

	err := r.mc.Delete(memcacheKey(email))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		slog.Warn(
			"memcached delete failed",
			slog.String("error", err.Error()),
			slog.String("module", "identity"),
		)
	}
}

// memcacheKey hashes the email so arbitrary input stays within memcached's key rules.
func memcacheKey(email string) string {
	return fmt.Sprintf("chronobit:identity:%016x", xxh3.HashString(email))
}
