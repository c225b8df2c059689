package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type APIKeyRepo interface {
	Create(ctx context.Context, key *types.APIKey) error
	// GetActiveByHash resolves an authenticating key by its SHA-256 hash.
	// Inactive keys and keys of inactive tenants are not returned.
	GetActiveByHash(ctx context.Context, keyHash string) (*types.APIKey, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type apiKeyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAPIKeyRepo(db *gorm.DB, baseLog *logger.Logger) APIKeyRepo {
	return &apiKeyRepo{db: db, log: baseLog.With("repo", "APIKey")}
}

func (r *apiKeyRepo) Create(ctx context.Context, key *types.APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *apiKeyRepo) GetActiveByHash(ctx context.Context, keyHash string) (*types.APIKey, error) {
	var key types.APIKey
	err := r.db.WithContext(ctx).
		Preload("Tenant").
		Where("key_hash = ? AND active = ?", keyHash, true).
		First(&key).Error
	if err != nil {
		return nil, err
	}
	if key.Tenant == nil || !key.Tenant.Active {
		return nil, gorm.ErrRecordNotFound
	}
	return &key, nil
}

func (r *apiKeyRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&types.APIKey{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
