package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type CourseRepo interface {
	Create(ctx context.Context, course *types.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.Course, error)
	// GetTree loads the course with its full module/lesson/concept/exercise
	// hierarchy, ordered.
	GetTree(ctx context.Context, id uuid.UUID) (*types.Course, error)
	List(ctx context.Context) ([]types.Course, error)
	Update(ctx context.Context, course *types.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ReplaceStructure swaps the persisted course tree for a freshly
	// generated one inside a single transaction.
	ReplaceStructure(ctx context.Context, courseID uuid.UUID, modules []types.CourseModule) error
	GetLesson(ctx context.Context, lessonID uuid.UUID) (*types.Lesson, error)
}

type courseRepo struct {
	db       *gorm.DB
	log      *logger.Logger
	tenantID uuid.UUID
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger, tenantID uuid.UUID) CourseRepo {
	return &courseRepo{
		db:       db,
		log:      baseLog.With("repo", "Course", "tenant_id", tenantID.String()),
		tenantID: tenantID,
	}
}

func (r *courseRepo) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ?", r.tenantID)
}

func (r *courseRepo) Create(ctx context.Context, course *types.Course) error {
	course.TenantID = r.tenantID
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) GetByID(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	var course types.Course
	if err := r.scoped(ctx).First(&course, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) GetTree(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	var course types.Course
	err := r.scoped(ctx).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("order_index ASC") }).
		Preload("Modules.Lessons.Concepts").
		Preload("Modules.Lessons.Exercises").
		First(&course, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) List(ctx context.Context) ([]types.Course, error) {
	var courses []types.Course
	if err := r.scoped(ctx).Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepo) Update(ctx context.Context, course *types.Course) error {
	res := r.scoped(ctx).Model(&types.Course{}).
		Where("id = ?", course.ID).
		Updates(map[string]any{
			"title":       course.Title,
			"description": course.Description,
			"metadata":    course.Metadata,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *courseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.scoped(ctx).Delete(&types.Course{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *courseRepo) ReplaceStructure(ctx context.Context, courseID uuid.UUID, modules []types.CourseModule) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course types.Course
		if err := tx.Where("tenant_id = ?", r.tenantID).
			First(&course, "id = ?", courseID).Error; err != nil {
			return err
		}

		var moduleIDs []uuid.UUID
		if err := tx.Model(&types.CourseModule{}).
			Where("course_id = ? AND tenant_id = ?", courseID, r.tenantID).
			Pluck("id", &moduleIDs).Error; err != nil {
			return err
		}
		if len(moduleIDs) > 0 {
			var lessonIDs []uuid.UUID
			if err := tx.Model(&types.Lesson{}).
				Where("course_module_id IN ?", moduleIDs).
				Pluck("id", &lessonIDs).Error; err != nil {
				return err
			}
			if len(lessonIDs) > 0 {
				if err := tx.Where("lesson_id IN ?", lessonIDs).Delete(&types.Concept{}).Error; err != nil {
					return err
				}
				if err := tx.Where("lesson_id IN ?", lessonIDs).Delete(&types.Exercise{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", lessonIDs).Delete(&types.Lesson{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ?", moduleIDs).Delete(&types.CourseModule{}).Error; err != nil {
				return err
			}
		}

		for mi := range modules {
			module := &modules[mi]
			module.TenantID = r.tenantID
			module.CourseID = courseID
			lessons := module.Lessons
			module.Lessons = nil
			if err := tx.Create(module).Error; err != nil {
				return err
			}
			for li := range lessons {
				lesson := &lessons[li]
				lesson.TenantID = r.tenantID
				lesson.CourseModuleID = module.ID
				concepts := lesson.Concepts
				exercises := lesson.Exercises
				lesson.Concepts = nil
				lesson.Exercises = nil
				if err := tx.Create(lesson).Error; err != nil {
					return err
				}
				for ci := range concepts {
					concepts[ci].TenantID = r.tenantID
					concepts[ci].LessonID = lesson.ID
				}
				if len(concepts) > 0 {
					if err := tx.Create(&concepts).Error; err != nil {
						return err
					}
				}
				for ei := range exercises {
					exercises[ei].TenantID = r.tenantID
					exercises[ei].LessonID = lesson.ID
				}
				if len(exercises) > 0 {
					if err := tx.Create(&exercises).Error; err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func (r *courseRepo) GetLesson(ctx context.Context, lessonID uuid.UUID) (*types.Lesson, error) {
	var lesson types.Lesson
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", r.tenantID).
		Preload("Concepts").
		Preload("Exercises").
		First(&lesson, "id = ?", lessonID).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}
