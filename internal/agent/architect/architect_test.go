package architect

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/llm/providers"
	"github.com/yungbote/courseforge-backend/internal/llm/router"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const testPack = `version: v1-test
system_prompt: You are a curriculum designer.
user_prompt_template: |
  Build a course from this material:
  {context}
`

type stubRouter struct {
	parsed    json.RawMessage
	err       error
	gotAction string
	gotPrompt string
	gotOpts   router.Options
}

func (s *stubRouter) CompleteStructured(ctx context.Context, action, prompt string, schema *providers.Schema, opts router.Options) (*router.StructuredResult, error) {
	s.gotAction = action
	s.gotPrompt = prompt
	s.gotOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return &router.StructuredResult{
		Parsed:   s.parsed,
		Response: &router.Response{Provider: "openai", ModelID: "gpt-x", Action: action},
	}, nil
}

func writePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "v1.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write pack: %v", err)
	}
	return path
}

func newStubAgent(t *testing.T, r structuredCompleter, promptPath string) *Agent {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	agent, err := newAgent(log, r, Config{PromptPath: promptPath})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return agent
}

func sampleContext() *ingest.CourseContext {
	return &ingest.CourseContext{
		Documents: []ingest.SourceDocument{{
			SourceType: ingest.SourceText,
			Title:      "notes.md",
			Chunks:     []ingest.ContentChunk{{Type: ingest.ChunkHeading, Text: "Raft", Index: 0}},
		}},
		CreatedAt: time.Now().UTC(),
	}
}

func validStructureJSON() json.RawMessage {
	return json.RawMessage(`{
		"title": "Distributed Systems",
		"description": "From logs to consensus.",
		"modules": [
			{"title": "Consensus", "order": 0, "lessons": [
				{"title": "Raft", "order": 0,
				 "concepts": [{"title": "Leader Election", "definition": "One leader per term."}],
				 "exercises": [{"description": "Implement heartbeats.", "difficulty_level": 2}]}
			]},
			{"title": "Replication", "order": 1, "lessons": []}
		]
	}`)
}

func TestPreparePromptsSubstitutesContext(t *testing.T) {
	agent := newStubAgent(t, &stubRouter{}, writePack(t, testPack))
	prepared, err := agent.PreparePrompts(sampleContext())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if prepared.PromptVersion != "v1-test" {
		t.Fatalf("version wrong: %q", prepared.PromptVersion)
	}
	if prepared.SystemPrompt != "You are a curriculum designer." {
		t.Fatalf("system prompt wrong: %q", prepared.SystemPrompt)
	}
	if strings.Contains(prepared.UserPrompt, "{context}") {
		t.Fatal("placeholder not substituted")
	}
	if !strings.Contains(prepared.UserPrompt, `"notes.md"`) {
		t.Fatalf("context JSON missing from prompt: %s", prepared.UserPrompt)
	}
}

func TestPreparePromptsMissingFile(t *testing.T) {
	agent := newStubAgent(t, &stubRouter{}, filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := agent.PreparePrompts(sampleContext()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file-not-found, got %v", err)
	}
}

func TestPreparePromptsMissingKeys(t *testing.T) {
	agent := newStubAgent(t, &stubRouter{}, writePack(t, "version: v1\nsystem_prompt: x\n"))
	_, err := agent.PreparePrompts(sampleContext())
	if err == nil || !strings.Contains(err.Error(), "missing required keys") {
		t.Fatalf("expected missing-keys error, got %v", err)
	}
}

func TestGenerateReturnsValidatedStructure(t *testing.T) {
	stub := &stubRouter{parsed: validStructureJSON()}
	agent := newStubAgent(t, stub, writePack(t, testPack))

	prepared, err := agent.PreparePrompts(sampleContext())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	structure, err := agent.Generate(context.Background(), prepared, router.Options{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if stub.gotAction != ActionCourseStructuring {
		t.Fatalf("action wrong: %q", stub.gotAction)
	}
	if stub.gotOpts.SystemPrompt != prepared.SystemPrompt {
		t.Fatal("system prompt not passed through")
	}
	if stub.gotOpts.MaxTokens != 8192 || stub.gotOpts.Temperature != 0 {
		t.Fatalf("defaults wrong: %+v", stub.gotOpts)
	}
	if structure.Title != "Distributed Systems" || len(structure.Modules) != 2 {
		t.Fatalf("structure wrong: %+v", structure)
	}
	if structure.Modules[0].Lessons[0].Exercises[0].DifficultyLevel != 2 {
		t.Fatalf("exercise lost: %+v", structure.Modules[0].Lessons[0])
	}
}

func TestGeneratePropagatesRouterErrors(t *testing.T) {
	routerErr := &router.AllModelsFailedError{Action: ActionCourseStructuring, StrategiesTried: []string{"default"}}
	agent := newStubAgent(t, &stubRouter{err: routerErr}, writePack(t, testPack))

	prepared, err := agent.PreparePrompts(sampleContext())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	_, err = agent.Generate(context.Background(), prepared, router.Options{})
	var amf *router.AllModelsFailedError
	if !errors.As(err, &amf) {
		t.Fatalf("router error must propagate verbatim, got %v", err)
	}
}

func TestGenerateRejectsSparseOrders(t *testing.T) {
	sparse := json.RawMessage(`{
		"title": "T",
		"modules": [
			{"title": "A", "order": 0, "lessons": []},
			{"title": "B", "order": 2, "lessons": []}
		]
	}`)
	agent := newStubAgent(t, &stubRouter{parsed: sparse}, writePack(t, testPack))

	prepared, err := agent.PreparePrompts(sampleContext())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	_, err = agent.Generate(context.Background(), prepared, router.Options{})
	if err == nil || !strings.Contains(err.Error(), "module orders") {
		t.Fatalf("expected dense-order rejection, got %v", err)
	}
}

func TestCheckDenseOrders(t *testing.T) {
	ok := &CourseStructure{Modules: []ModuleSpec{
		{Order: 1, Lessons: []LessonSpec{{Order: 0}, {Order: 1}}},
		{Order: 0},
	}}
	if err := checkDenseOrders(ok); err != nil {
		t.Fatalf("valid orders rejected: %v", err)
	}

	badLessons := &CourseStructure{Modules: []ModuleSpec{
		{Title: "M", Order: 0, Lessons: []LessonSpec{{Order: 0}, {Order: 0}}},
	}}
	if err := checkDenseOrders(badLessons); err == nil {
		t.Fatal("duplicate lesson orders must be rejected")
	}
}
