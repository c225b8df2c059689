package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

type CourseService interface {
	Create(ctx context.Context, tc *TenantContext, title, description string) (*types.Course, error)
	Get(ctx context.Context, tc *TenantContext, id uuid.UUID) (*types.Course, error)
	GetTree(ctx context.Context, tc *TenantContext, id uuid.UUID) (*types.Course, error)
	List(ctx context.Context, tc *TenantContext) ([]types.Course, error)
	GetLesson(ctx context.Context, tc *TenantContext, lessonID uuid.UUID) (*types.Lesson, error)
}

type courseService struct {
	log     *logger.Logger
	factory *repos.Factory
}

func NewCourseService(log *logger.Logger, factory *repos.Factory) CourseService {
	return &courseService{log: log.With("service", "Course"), factory: factory}
}

func (s *courseService) Create(ctx context.Context, tc *TenantContext, title, description string) (*types.Course, error) {
	course := &types.Course{Title: title, Description: description}
	if err := s.factory.Courses(tc.TenantID).Create(ctx, course); err != nil {
		return nil, err
	}
	s.log.Info("course created", "tenant_id", tc.TenantID.String(), "course_id", course.ID.String())
	return course, nil
}

func (s *courseService) Get(ctx context.Context, tc *TenantContext, id uuid.UUID) (*types.Course, error) {
	return s.factory.Courses(tc.TenantID).GetByID(ctx, id)
}

func (s *courseService) GetTree(ctx context.Context, tc *TenantContext, id uuid.UUID) (*types.Course, error) {
	return s.factory.Courses(tc.TenantID).GetTree(ctx, id)
}

func (s *courseService) List(ctx context.Context, tc *TenantContext) ([]types.Course, error) {
	return s.factory.Courses(tc.TenantID).List(ctx)
}

func (s *courseService) GetLesson(ctx context.Context, tc *TenantContext, lessonID uuid.UUID) (*types.Lesson, error) {
	return s.factory.Courses(tc.TenantID).GetLesson(ctx, lessonID)
}
