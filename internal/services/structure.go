package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/agent/architect"
	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/llm/router"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

var (
	// ErrNoReadyMaterial means generation was requested before any material
	// finished ingestion.
	ErrNoReadyMaterial = errors.New("course has no ready material")
	// ErrGenerationInProgress means a run is already queued or running for
	// the course.
	ErrGenerationInProgress = errors.New("structure generation already in progress")
)

const (
	GenerateQueued     = "queued"
	GenerateIdempotent = "idempotent"
)

// GenerateResult tells the caller whether a new run was started or an
// existing structure was reused. Course is set only on the idempotent path.
type GenerateResult struct {
	Status string              `json:"status"`
	Run    *types.StructureRun `json:"run"`
	Course *types.Course       `json:"course,omitempty"`
}

// structureGenerator is the slice of the architect agent this service needs.
type structureGenerator interface {
	Run(ctx context.Context, cc *ingest.CourseContext, opts router.Options) (*architect.CourseStructure, error)
}

type StructureService interface {
	// Generate starts (or short-circuits) structure generation for a course.
	Generate(ctx context.Context, tc *TenantContext, courseID uuid.UUID) (*GenerateResult, error)
	GetRun(ctx context.Context, tc *TenantContext, runID uuid.UUID) (*types.StructureRun, error)
	LatestRun(ctx context.Context, tc *TenantContext, courseID uuid.UUID) (*types.StructureRun, error)
	// Wait blocks until background runs finish. Used on shutdown.
	Wait()
}

type structureService struct {
	log     *logger.Logger
	factory *repos.Factory
	agent   structureGenerator

	wg sync.WaitGroup
}

func NewStructureService(log *logger.Logger, factory *repos.Factory, agent structureGenerator) StructureService {
	return &structureService{
		log:     log.With("service", "Structure"),
		factory: factory,
		agent:   agent,
	}
}

func (s *structureService) Generate(ctx context.Context, tc *TenantContext, courseID uuid.UUID) (*GenerateResult, error) {
	courses := s.factory.Courses(tc.TenantID)
	runs := s.factory.StructureRuns(tc.TenantID)

	if _, err := courses.GetByID(ctx, courseID); err != nil {
		return nil, err
	}

	ready, err := s.factory.Materials(tc.TenantID).ListReadyByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		return nil, ErrNoReadyMaterial
	}
	fingerprint := materialFingerprint(ready)

	if active, err := runs.ActiveByCourse(ctx, courseID); err == nil {
		return &GenerateResult{Status: active.Status, Run: active}, ErrGenerationInProgress
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if prior, err := runs.SucceededByFingerprint(ctx, courseID, fingerprint); err == nil {
		course, err := courses.GetTree(ctx, courseID)
		if err != nil {
			return nil, err
		}
		return &GenerateResult{Status: GenerateIdempotent, Run: prior, Course: course}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	run := &types.StructureRun{
		CourseID:    courseID,
		Status:      types.StructureRunQueued,
		Fingerprint: fingerprint,
	}
	if err := runs.Create(ctx, run); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("structure generation panicked",
					"tenant_id", tc.TenantID.String(), "run_id", run.ID.String(), "panic", rec)
				bg, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
				defer cancel()
				_ = runs.MarkFailed(bg, run.ID, "internal error")
			}
		}()
		bg, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		s.runGeneration(bg, tc.TenantID, courseID, run.ID)
	}()

	s.log.Info("structure generation queued",
		"tenant_id", tc.TenantID.String(), "course_id", courseID.String(), "run_id", run.ID.String())
	return &GenerateResult{Status: GenerateQueued, Run: run}, nil
}

func (s *structureService) GetRun(ctx context.Context, tc *TenantContext, runID uuid.UUID) (*types.StructureRun, error) {
	return s.factory.StructureRuns(tc.TenantID).GetByID(ctx, runID)
}

func (s *structureService) LatestRun(ctx context.Context, tc *TenantContext, courseID uuid.UUID) (*types.StructureRun, error) {
	return s.factory.StructureRuns(tc.TenantID).LatestByCourse(ctx, courseID)
}

func (s *structureService) Wait() { s.wg.Wait() }

func (s *structureService) runGeneration(ctx context.Context, tenantID, courseID, runID uuid.UUID) {
	runs := s.factory.StructureRuns(tenantID)
	log := s.log.With("tenant_id", tenantID.String(), "course_id", courseID.String(), "run_id", runID.String())

	if err := runs.MarkRunning(ctx, runID); err != nil {
		log.Error("failed to mark run running", "error", err)
		return
	}

	fail := func(msg string, err error) {
		log.Warn("structure generation failed", "stage", msg, "error", err)
		if merr := runs.MarkFailed(ctx, runID, fmt.Sprintf("%s: %v", msg, err)); merr != nil {
			log.Error("failed to mark run failed", "error", merr)
		}
	}

	cc, err := s.buildContext(ctx, tenantID, courseID)
	if err != nil {
		fail("assemble course context", err)
		return
	}

	tid := tenantID
	structure, err := s.agent.Run(ctx, cc, router.Options{TenantID: &tid})
	if err != nil {
		fail("generate structure", err)
		return
	}

	modules, err := modulesFromStructure(structure)
	if err != nil {
		fail("convert structure", err)
		return
	}

	courses := s.factory.Courses(tenantID)
	if err := courses.ReplaceStructure(ctx, courseID, modules); err != nil {
		fail("persist structure", err)
		return
	}
	course, err := courses.GetByID(ctx, courseID)
	if err == nil {
		course.Title = structure.Title
		if structure.Description != "" {
			course.Description = structure.Description
		}
		if uerr := courses.Update(ctx, course); uerr != nil {
			log.Warn("failed to update course metadata", "error", uerr)
		}
	}

	if err := runs.MarkSucceeded(ctx, runID); err != nil {
		log.Error("failed to mark run succeeded", "error", err)
		return
	}
	log.Info("structure generation succeeded", "modules", len(modules))
}

// buildContext turns ready materials and slide mappings into the merged
// bundle the architect consumes.
func (s *structureService) buildContext(ctx context.Context, tenantID, courseID uuid.UUID) (*ingest.CourseContext, error) {
	ready, err := s.factory.Materials(tenantID).ListReadyByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	docs := make([]ingest.SourceDocument, 0, len(ready))
	for _, m := range ready {
		var doc ingest.SourceDocument
		if err := json.Unmarshal(m.Document, &doc); err != nil {
			return nil, fmt.Errorf("decode document for material %s: %w", m.ID, err)
		}
		docs = append(docs, doc)
	}

	rows, err := s.factory.SlideMappings(tenantID).ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	mappings := make([]ingest.SlideVideoMapping, 0, len(rows))
	for _, row := range rows {
		mappings = append(mappings, ingest.SlideVideoMapping{
			SlideNumber:   row.SlideNumber,
			VideoTimecode: row.VideoTimecode,
		})
	}

	return ingest.Merge(docs, mappings)
}

// materialFingerprint hashes the sorted ready material IDs so an unchanged
// material set maps to the same value.
func materialFingerprint(materials []types.MaterialFile) string {
	ids := make([]string, 0, len(materials))
	for _, m := range materials {
		ids = append(ids, m.ID.String())
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func modulesFromStructure(cs *architect.CourseStructure) ([]types.CourseModule, error) {
	modules := make([]types.CourseModule, 0, len(cs.Modules))
	for _, m := range cs.Modules {
		module := types.CourseModule{Title: m.Title, Order: m.Order}
		for _, l := range m.Lessons {
			lesson := types.Lesson{
				Title:              l.Title,
				Order:              l.Order,
				VideoStartTimecode: l.VideoStartTimecode,
				VideoEndTimecode:   l.VideoEndTimecode,
			}
			if l.SlideRange != nil {
				start, end := l.SlideRange.Start, l.SlideRange.End
				lesson.SlideRangeStart = &start
				lesson.SlideRangeEnd = &end
			}
			for _, c := range l.Concepts {
				concept := types.Concept{Title: c.Title, Definition: c.Definition}
				var err error
				if concept.Examples, err = jsonField(c.Examples); err != nil {
					return nil, err
				}
				if concept.Timecodes, err = jsonField(c.Timecodes); err != nil {
					return nil, err
				}
				if concept.SlideRefs, err = jsonField(c.SlideReferences); err != nil {
					return nil, err
				}
				if concept.WebReferences, err = jsonField(c.WebReferences); err != nil {
					return nil, err
				}
				lesson.Concepts = append(lesson.Concepts, concept)
			}
			for _, e := range l.Exercises {
				lesson.Exercises = append(lesson.Exercises, types.Exercise{
					Description:       e.Description,
					ReferenceSolution: e.ReferenceSolution,
					GradingCriteria:   e.GradingCriteria,
					DifficultyLevel:   e.DifficultyLevel,
				})
			}
			module.Lessons = append(module.Lessons, lesson)
		}
		modules = append(modules, module)
	}
	return modules, nil
}

func jsonField(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode concept field: %w", err)
	}
	return datatypes.JSON(raw), nil
}
