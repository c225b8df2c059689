package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// Factory hands out tenant-scoped repositories. Every repo it builds injects
// the tenant id into created rows and into every predicate, so a handler can
// only ever touch its caller's data. There is deliberately no unscoped
// variant for tenant-owned tables.
type Factory struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFactory(db *gorm.DB, log *logger.Logger) *Factory {
	return &Factory{db: db, log: log}
}

func (f *Factory) Courses(tenantID uuid.UUID) CourseRepo {
	return NewCourseRepo(f.db, f.log, tenantID)
}

func (f *Factory) Materials(tenantID uuid.UUID) MaterialRepo {
	return NewMaterialRepo(f.db, f.log, tenantID)
}

func (f *Factory) SlideMappings(tenantID uuid.UUID) SlideMappingRepo {
	return NewSlideMappingRepo(f.db, f.log, tenantID)
}

func (f *Factory) StructureRuns(tenantID uuid.UUID) StructureRunRepo {
	return NewStructureRunRepo(f.db, f.log, tenantID)
}

// APIKeys is not tenant-scoped: it is what resolves a tenant in the first
// place.
func (f *Factory) APIKeys() APIKeyRepo {
	return NewAPIKeyRepo(f.db, f.log)
}

// LLMCalls accepts rows with or without a tenant (system-originated calls).
func (f *Factory) LLMCalls() LLMCallRepo {
	return NewLLMCallRepo(f.db, f.log)
}
