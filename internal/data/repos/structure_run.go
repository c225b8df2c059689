package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type StructureRunRepo interface {
	Create(ctx context.Context, run *types.StructureRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.StructureRun, error)
	LatestByCourse(ctx context.Context, courseID uuid.UUID) (*types.StructureRun, error)
	// ActiveByCourse returns a queued or running run for the course, if any.
	ActiveByCourse(ctx context.Context, courseID uuid.UUID) (*types.StructureRun, error)
	// SucceededByFingerprint finds a prior successful run over the same
	// material set.
	SucceededByFingerprint(ctx context.Context, courseID uuid.UUID, fingerprint string) (*types.StructureRun, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

type structureRunRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	tenantID uuid.UUID
}

func NewStructureRunRepo(db *gorm.DB, baseLog *logger.Logger, tenantID uuid.UUID) StructureRunRepo {
	return &structureRunRepo{
		db:       db,
		log:      baseLog.With("repo", "StructureRun", "tenant_id", tenantID.String()),
		tenantID: tenantID,
	}
}

func (r *structureRunRepo) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ?", r.tenantID)
}

func (r *structureRunRepo) Create(ctx context.Context, run *types.StructureRun) error {
	run.TenantID = r.tenantID
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *structureRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.StructureRun, error) {
	var run types.StructureRun
	if err := r.scoped(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *structureRunRepo) LatestByCourse(ctx context.Context, courseID uuid.UUID) (*types.StructureRun, error) {
	var run types.StructureRun
	err := r.scoped(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *structureRunRepo) ActiveByCourse(ctx context.Context, courseID uuid.UUID) (*types.StructureRun, error) {
	var run types.StructureRun
	err := r.scoped(ctx).
		Where("course_id = ? AND status IN ?", courseID,
			[]string{types.StructureRunQueued, types.StructureRunRunning}).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *structureRunRepo) SucceededByFingerprint(ctx context.Context, courseID uuid.UUID, fingerprint string) (*types.StructureRun, error) {
	var run types.StructureRun
	err := r.scoped(ctx).
		Where("course_id = ? AND fingerprint = ? AND status = ?",
			courseID, fingerprint, types.StructureRunSucceeded).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *structureRunRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]any{
		"status":     types.StructureRunRunning,
		"started_at": &now,
	})
}

func (r *structureRunRepo) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]any{
		"status":      types.StructureRunSucceeded,
		"finished_at": &now,
	})
}

func (r *structureRunRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]any{
		"status":        types.StructureRunFailed,
		"error_message": message,
		"finished_at":   &now,
	})
}

func (r *structureRunRepo) update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.scoped(ctx).Model(&types.StructureRun{}).
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
