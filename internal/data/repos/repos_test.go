package repos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

func openTestDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(
		&types.Tenant{},
		&types.APIKey{},
		&types.Course{},
		&types.CourseModule{},
		&types.Lesson{},
		&types.Concept{},
		&types.Exercise{},
		&types.MaterialFile{},
		&types.SlideMapping{},
		&types.StructureRun{},
		&types.LLMCall{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return gdb, log
}

func seedTenant(t *testing.T, gdb *gorm.DB, name string) *types.Tenant {
	t.Helper()
	tenant := &types.Tenant{Name: name, Active: true}
	if err := gdb.Create(tenant).Error; err != nil {
		t.Fatalf("seed tenant %s: %v", name, err)
	}
	return tenant
}

func TestCourseRepoTenantIsolation(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenantA := seedTenant(t, gdb, "acme")
	tenantB := seedTenant(t, gdb, "globex")
	factory := NewFactory(gdb, log)

	coursesA := factory.Courses(tenantA.ID)
	coursesB := factory.Courses(tenantB.ID)

	course := &types.Course{Title: "Intro to Networking"}
	if err := coursesA.Create(ctx, course); err != nil {
		t.Fatalf("create: %v", err)
	}
	if course.TenantID != tenantA.ID {
		t.Fatalf("tenant not injected: %s", course.TenantID)
	}

	if _, err := coursesA.GetByID(ctx, course.ID); err != nil {
		t.Fatalf("owner lookup failed: %v", err)
	}

	// Foreign tenant gets "not found", never "forbidden".
	if _, err := coursesB.GetByID(ctx, course.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found for foreign tenant, got %v", err)
	}

	listB, err := coursesB.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listB) != 0 {
		t.Fatalf("foreign tenant sees %d courses", len(listB))
	}

	if err := coursesB.Delete(ctx, course.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("foreign delete should be not found, got %v", err)
	}
	if err := coursesA.Delete(ctx, course.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestCourseRepoReplaceStructureRoundTrip(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, gdb, "acme")
	courses := NewCourseRepo(gdb, log, tenant.ID)

	course := &types.Course{Title: "Distributed Systems"}
	if err := courses.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}

	first := []types.CourseModule{
		{Title: "Old Module", Order: 1, Lessons: []types.Lesson{{Title: "Old Lesson", Order: 1}}},
	}
	if err := courses.ReplaceStructure(ctx, course.ID, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	second := []types.CourseModule{
		{
			Title: "Consensus", Order: 1,
			Lessons: []types.Lesson{
				{
					Title: "Raft", Order: 1,
					Concepts:  []types.Concept{{Title: "Leader Election", Definition: "Electing a single leader per term."}},
					Exercises: []types.Exercise{{Description: "Implement log replication.", DifficultyLevel: 3}},
				},
				{Title: "Paxos", Order: 2},
			},
		},
		{Title: "Replication", Order: 2},
	}
	if err := courses.ReplaceStructure(ctx, course.ID, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	tree, err := courses.GetTree(ctx, course.ID)
	if err != nil {
		t.Fatalf("get tree: %v", err)
	}
	if len(tree.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(tree.Modules))
	}
	if tree.Modules[0].Title != "Consensus" || tree.Modules[1].Title != "Replication" {
		t.Fatalf("module order wrong: %s, %s", tree.Modules[0].Title, tree.Modules[1].Title)
	}
	lessons := tree.Modules[0].Lessons
	if len(lessons) != 2 || lessons[0].Title != "Raft" || lessons[1].Title != "Paxos" {
		t.Fatalf("lesson order wrong: %+v", lessons)
	}
	if len(lessons[0].Concepts) != 1 || lessons[0].Concepts[0].Title != "Leader Election" {
		t.Fatalf("concepts not persisted: %+v", lessons[0].Concepts)
	}
	if len(lessons[0].Exercises) != 1 || lessons[0].Exercises[0].DifficultyLevel != 3 {
		t.Fatalf("exercises not persisted: %+v", lessons[0].Exercises)
	}

	// The old tree must be gone entirely.
	var moduleCount int64
	if err := gdb.Model(&types.CourseModule{}).Where("course_id = ?", course.ID).Count(&moduleCount).Error; err != nil {
		t.Fatalf("count modules: %v", err)
	}
	if moduleCount != 2 {
		t.Fatalf("stale modules left behind: %d", moduleCount)
	}

	lesson, err := courses.GetLesson(ctx, lessons[0].ID)
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	if lesson.Title != "Raft" || len(lesson.Concepts) != 1 {
		t.Fatalf("lesson lookup wrong: %+v", lesson)
	}
}

func TestMaterialRepoStatusTransitions(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, gdb, "acme")
	courses := NewCourseRepo(gdb, log, tenant.ID)
	materials := NewMaterialRepo(gdb, log, tenant.ID)

	course := &types.Course{Title: "Databases"}
	if err := courses.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}

	material := &types.MaterialFile{
		CourseID:     course.ID,
		SourceType:   "text",
		OriginalName: "notes.md",
		Status:       types.MaterialStatusUploaded,
	}
	if err := materials.Create(ctx, material); err != nil {
		t.Fatalf("create material: %v", err)
	}

	if err := materials.MarkProcessing(ctx, material.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := materials.MarkReady(ctx, material.ID, []byte(`{"chunks":[]}`)); err != nil {
		t.Fatalf("mark ready: %v", err)
	}

	got, err := materials.GetByID(ctx, material.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.MaterialStatusReady || got.ProcessedAt == nil {
		t.Fatalf("ready state wrong: %+v", got)
	}

	ready, err := materials.ListReadyByCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("list ready: %v", err)
	}
	if len(ready) != 1 {
		t.Fatalf("expected 1 ready material, got %d", len(ready))
	}

	if err := materials.MarkError(ctx, material.ID, "unreadable file"); err != nil {
		t.Fatalf("mark error: %v", err)
	}
	got, err = materials.GetByID(ctx, material.ID)
	if err != nil {
		t.Fatalf("get after error: %v", err)
	}
	if got.Status != types.MaterialStatusError || got.ErrorMessage != "unreadable file" {
		t.Fatalf("error state wrong: %+v", got)
	}

	if err := materials.MarkReady(ctx, uuid.New(), nil); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("unknown id should be not found, got %v", err)
	}
}

func TestSlideMappingReplace(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, gdb, "acme")
	courses := NewCourseRepo(gdb, log, tenant.ID)
	slides := NewSlideMappingRepo(gdb, log, tenant.ID)

	course := &types.Course{Title: "Operating Systems"}
	if err := courses.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}

	first := []types.SlideMapping{
		{SlideNumber: 1, VideoTimecode: "00:00"},
		{SlideNumber: 2, VideoTimecode: "03:15"},
	}
	if err := slides.Replace(ctx, course.ID, first); err != nil {
		t.Fatalf("first replace: %v", err)
	}

	second := []types.SlideMapping{
		{SlideNumber: 2, VideoTimecode: "02:40"},
		{SlideNumber: 1, VideoTimecode: "00:10"},
		{SlideNumber: 3, VideoTimecode: "07:02"},
	}
	if err := slides.Replace(ctx, course.ID, second); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := slides.ListByCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 mappings, got %d", len(got))
	}
	if got[0].SlideNumber != 1 || got[0].VideoTimecode != "00:10" {
		t.Fatalf("replace did not overwrite: %+v", got[0])
	}

	// Replacing on a foreign course id is not found.
	foreign := NewSlideMappingRepo(gdb, log, uuid.New())
	if err := foreign.Replace(ctx, course.ID, first); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("foreign replace should be not found, got %v", err)
	}
}

func TestStructureRunLifecycleAndFingerprint(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, gdb, "acme")
	courses := NewCourseRepo(gdb, log, tenant.ID)
	runs := NewStructureRunRepo(gdb, log, tenant.ID)

	course := &types.Course{Title: "Compilers"}
	if err := courses.Create(ctx, course); err != nil {
		t.Fatalf("create course: %v", err)
	}

	run := &types.StructureRun{CourseID: course.ID, Status: types.StructureRunQueued, Fingerprint: "fp-1"}
	if err := runs.Create(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	active, err := runs.ActiveByCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("active lookup: %v", err)
	}
	if active.ID != run.ID {
		t.Fatalf("wrong active run: %s", active.ID)
	}

	if err := runs.MarkRunning(ctx, run.ID); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := runs.MarkSucceeded(ctx, run.ID); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	if _, err := runs.ActiveByCourse(ctx, course.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("no active run expected, got %v", err)
	}

	prior, err := runs.SucceededByFingerprint(ctx, course.ID, "fp-1")
	if err != nil {
		t.Fatalf("fingerprint lookup: %v", err)
	}
	if prior.ID != run.ID || prior.FinishedAt == nil {
		t.Fatalf("fingerprint run wrong: %+v", prior)
	}
	if _, err := runs.SucceededByFingerprint(ctx, course.ID, "fp-other"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("unknown fingerprint should be not found, got %v", err)
	}

	failed := &types.StructureRun{CourseID: course.ID, Status: types.StructureRunQueued, Fingerprint: "fp-2"}
	if err := runs.Create(ctx, failed); err != nil {
		t.Fatalf("create second run: %v", err)
	}
	if err := runs.MarkFailed(ctx, failed.ID, "all models failed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	latest, err := runs.LatestByCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != types.StructureRunFailed || latest.ErrorMessage != "all models failed" {
		t.Fatalf("latest run wrong: %+v", latest)
	}
}

func TestAPIKeyRepoActiveLookup(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, gdb, "acme")
	keys := NewAPIKeyRepo(gdb, log)

	key := &types.APIKey{
		TenantID:       tenant.ID,
		KeyHash:        "hash-abc",
		KeyPrefix:      "cs_test_1234",
		Label:          "ci",
		Scopes:         types.ScopesJSON(types.ScopePrep),
		RateLimitPrep:  60,
		RateLimitCheck: 120,
		Active:         true,
	}
	if err := keys.Create(ctx, key); err != nil {
		t.Fatalf("create key: %v", err)
	}

	got, err := keys.GetActiveByHash(ctx, "hash-abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Tenant == nil || got.Tenant.Name != "acme" {
		t.Fatalf("tenant not preloaded: %+v", got)
	}
	if scopes := got.ScopeList(); len(scopes) != 1 || scopes[0] != types.ScopePrep {
		t.Fatalf("scopes wrong: %v", scopes)
	}

	if _, err := keys.GetActiveByHash(ctx, "no-such-hash"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("unknown hash should be not found, got %v", err)
	}

	if err := keys.Deactivate(ctx, key.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := keys.GetActiveByHash(ctx, "hash-abc"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("deactivated key should be not found, got %v", err)
	}

	// An active key under an inactive tenant must not authenticate.
	if err := gdb.Model(&types.Tenant{}).Where("id = ?", tenant.ID).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate tenant: %v", err)
	}
	if err := gdb.Model(&types.APIKey{}).Where("id = ?", key.ID).Update("active", true).Error; err != nil {
		t.Fatalf("reactivate key: %v", err)
	}
	if _, err := keys.GetActiveByHash(ctx, "hash-abc"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("inactive tenant should be not found, got %v", err)
	}
}

func TestLLMCallCostReport(t *testing.T) {
	gdb, log := openTestDB(t)
	ctx := context.Background()
	tenantA := seedTenant(t, gdb, "acme")
	tenantB := seedTenant(t, gdb, "globex")
	calls := NewLLMCallRepo(gdb, log)

	mk := func(tenantID *uuid.UUID, action, provider, model string, in, out int, cost float64, success bool) {
		t.Helper()
		call := &types.LLMCall{
			TenantID: tenantID,
			Action:   action,
			Strategy: "default",
			Provider: provider,
			ModelID:  model,
			TokensIn: &in, TokensOut: &out,
			LatencyMS: 100,
			CostUSD:   &cost,
			Success:   success,
		}
		if !success {
			call.ErrorMessage = "timeout"
		}
		if err := calls.Create(ctx, call); err != nil {
			t.Fatalf("create call: %v", err)
		}
	}

	mk(&tenantA.ID, "course_structuring", "openai", "gpt-x", 1000, 500, 0.02, true)
	mk(&tenantA.ID, "course_structuring", "openai", "gpt-x", 2000, 700, 0.04, true)
	mk(&tenantA.ID, "course_structuring", "anthropic", "claude-y", 100, 50, 0.01, false)
	mk(&tenantB.ID, "course_structuring", "openai", "gpt-x", 9000, 9000, 9.99, true)
	mk(nil, "maintenance", "openai", "gpt-x", 10, 10, 0.001, true)

	rows, err := calls.CostReport(ctx, tenantA.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("cost report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 aggregated rows, got %d: %+v", len(rows), rows)
	}
	var openai CostReportRow
	for _, row := range rows {
		if row.Provider == "openai" {
			openai = row
		}
	}
	if openai.Calls != 2 || openai.TokensIn != 3000 || openai.TokensOut != 1200 {
		t.Fatalf("openai aggregation wrong: %+v", openai)
	}
	if openai.CostUSD < 0.0599 || openai.CostUSD > 0.0601 {
		t.Fatalf("openai cost wrong: %v", openai.CostUSD)
	}

	// The window filter must exclude old rows.
	rows, err = calls.CostReport(ctx, tenantA.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("cost report future window: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("future window should be empty, got %+v", rows)
	}
}
