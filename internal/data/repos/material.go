package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type MaterialRepo interface {
	Create(ctx context.Context, material *types.MaterialFile) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.MaterialFile, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]types.MaterialFile, error)
	ListReadyByCourse(ctx context.Context, courseID uuid.UUID) ([]types.MaterialFile, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkReady(ctx context.Context, id uuid.UUID, document datatypes.JSON) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
}

type materialRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	tenantID uuid.UUID
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger, tenantID uuid.UUID) MaterialRepo {
	return &materialRepo{
		db:       db,
		log:      baseLog.With("repo", "Material", "tenant_id", tenantID.String()),
		tenantID: tenantID,
	}
}

func (r *materialRepo) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ?", r.tenantID)
}

func (r *materialRepo) Create(ctx context.Context, material *types.MaterialFile) error {
	material.TenantID = r.tenantID
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *materialRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.MaterialFile, error) {
	var material types.MaterialFile
	if err := r.scoped(ctx).First(&material, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *materialRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]types.MaterialFile, error) {
	var materials []types.MaterialFile
	err := r.scoped(ctx).
		Where("course_id = ?", courseID).
		Order("created_at ASC").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *materialRepo) ListReadyByCourse(ctx context.Context, courseID uuid.UUID) ([]types.MaterialFile, error) {
	var materials []types.MaterialFile
	err := r.scoped(ctx).
		Where("course_id = ? AND status = ?", courseID, types.MaterialStatusReady).
		Order("created_at ASC").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *materialRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, map[string]any{
		"status":        types.MaterialStatusProcessing,
		"error_message": "",
	})
}

func (r *materialRepo) MarkReady(ctx context.Context, id uuid.UUID, document datatypes.JSON) error {
	now := time.Now().UTC()
	return r.setStatus(ctx, id, map[string]any{
		"status":        types.MaterialStatusReady,
		"document":      document,
		"error_message": "",
		"processed_at":  &now,
	})
}

func (r *materialRepo) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	return r.setStatus(ctx, id, map[string]any{
		"status":        types.MaterialStatusError,
		"error_message": message,
	})
}

func (r *materialRepo) setStatus(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.scoped(ctx).Model(&types.MaterialFile{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
