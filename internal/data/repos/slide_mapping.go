package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type SlideMappingRepo interface {
	// Replace swaps a course's slide-to-timecode table atomically.
	Replace(ctx context.Context, courseID uuid.UUID, mappings []types.SlideMapping) error
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]types.SlideMapping, error)
}

type slideMappingRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	tenantID uuid.UUID
}

func NewSlideMappingRepo(db *gorm.DB, baseLog *logger.Logger, tenantID uuid.UUID) SlideMappingRepo {
	return &slideMappingRepo{
		db:       db,
		log:      baseLog.With("repo", "SlideMapping", "tenant_id", tenantID.String()),
		tenantID: tenantID,
	}
}

func (r *slideMappingRepo) Replace(ctx context.Context, courseID uuid.UUID, mappings []types.SlideMapping) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course types.Course
		if err := tx.Where("tenant_id = ?", r.tenantID).
			First(&course, "id = ?", courseID).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ? AND tenant_id = ?", courseID, r.tenantID).
			Delete(&types.SlideMapping{}).Error; err != nil {
			return err
		}
		if len(mappings) == 0 {
			return nil
		}
		for i := range mappings {
			mappings[i].TenantID = r.tenantID
			mappings[i].CourseID = courseID
		}
		return tx.Create(&mappings).Error
	})
}

func (r *slideMappingRepo) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]types.SlideMapping, error) {
	var mappings []types.SlideMapping
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND course_id = ?", r.tenantID, courseID).
		Order("slide_number ASC").
		Find(&mappings).Error
	if err != nil {
		return nil, err
	}
	return mappings, nil
}
