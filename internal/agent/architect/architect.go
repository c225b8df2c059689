package architect

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/llm/providers"
	"github.com/yungbote/courseforge-backend/internal/llm/router"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const (
	ActionCourseStructuring = "course_structuring"

	defaultPromptPath  = "prompts/architect/v1.yaml"
	defaultTemperature = 0.0
	defaultMaxTokens   = 8192
	contextPlaceholder = "{context}"
)

// PreparedPrompt is the output of the prompt step, ready for the model.
type PreparedPrompt struct {
	SystemPrompt  string
	UserPrompt    string
	PromptVersion string
}

type promptPack struct {
	Version            string `yaml:"version"`
	SystemPrompt       string `yaml:"system_prompt"`
	UserPromptTemplate string `yaml:"user_prompt_template"`
}

// structuredCompleter is the slice of the router the agent needs.
type structuredCompleter interface {
	CompleteStructured(ctx context.Context, action, prompt string, schema *providers.Schema, opts router.Options) (*router.StructuredResult, error)
}

// Config tunes the agent; zero values take the documented defaults.
type Config struct {
	PromptPath  string
	Temperature float64
	MaxTokens   int
	Strategy    string
}

// Agent turns a merged course context into a validated CourseStructure. It
// is a two-step pipeline (prepare prompts, generate) so it can later be
// promoted into a multi-step orchestration without changing callers.
type Agent struct {
	log    *logger.Logger
	router structuredCompleter
	schema *providers.Schema
	cfg    Config
}

func New(log *logger.Logger, r *router.Router, cfg Config) (*Agent, error) {
	return newAgent(log, r, cfg)
}

func newAgent(log *logger.Logger, r structuredCompleter, cfg Config) (*Agent, error) {
	if cfg.PromptPath == "" {
		cfg.PromptPath = defaultPromptPath
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	schema, err := providers.NewSchema("course_structure", CourseStructure{})
	if err != nil {
		return nil, fmt.Errorf("build course structure schema: %w", err)
	}
	return &Agent{
		log:    log.With("agent", "architect"),
		router: r,
		schema: schema,
		cfg:    cfg,
	}, nil
}

// PreparePrompts loads the versioned prompt pack and substitutes the
// serialized course context into the user template.
func (a *Agent) PreparePrompts(cc *ingest.CourseContext) (*PreparedPrompt, error) {
	raw, err := os.ReadFile(a.cfg.PromptPath)
	if err != nil {
		return nil, fmt.Errorf("read prompt pack %s: %w", a.cfg.PromptPath, err)
	}
	var pack promptPack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return nil, fmt.Errorf("parse prompt pack %s: %w", a.cfg.PromptPath, err)
	}
	if pack.Version == "" || pack.SystemPrompt == "" || pack.UserPromptTemplate == "" {
		return nil, fmt.Errorf("prompt pack %s missing required keys (version, system_prompt, user_prompt_template)", a.cfg.PromptPath)
	}
	if !strings.Contains(pack.UserPromptTemplate, contextPlaceholder) {
		return nil, fmt.Errorf("prompt pack %s user template has no %s placeholder", a.cfg.PromptPath, contextPlaceholder)
	}

	contextJSON, err := json.Marshal(cc)
	if err != nil {
		return nil, fmt.Errorf("serialize course context: %w", err)
	}

	return &PreparedPrompt{
		SystemPrompt:  pack.SystemPrompt,
		UserPrompt:    strings.ReplaceAll(pack.UserPromptTemplate, contextPlaceholder, string(contextJSON)),
		PromptVersion: pack.Version,
	}, nil
}

// Generate asks the router for a structured course outline. Router errors
// propagate untouched.
func (a *Agent) Generate(ctx context.Context, prepared *PreparedPrompt, opts router.Options) (*CourseStructure, error) {
	opts.SystemPrompt = prepared.SystemPrompt
	opts.Temperature = a.cfg.Temperature
	opts.MaxTokens = a.cfg.MaxTokens
	if opts.Strategy == "" {
		opts.Strategy = a.cfg.Strategy
	}

	result, err := a.router.CompleteStructured(ctx, ActionCourseStructuring, prepared.UserPrompt, a.schema, opts)
	if err != nil {
		return nil, err
	}

	var structure CourseStructure
	if err := json.Unmarshal(result.Parsed, &structure); err != nil {
		return nil, fmt.Errorf("decode course structure: %w", err)
	}
	if err := checkDenseOrders(&structure); err != nil {
		return nil, fmt.Errorf("course structure invalid: %w", err)
	}
	a.log.Info("course structure generated",
		"prompt_version", prepared.PromptVersion,
		"modules", len(structure.Modules),
		"model_provider", result.Response.Provider,
		"model_id", result.Response.ModelID)
	return &structure, nil
}

// Run is the whole pipeline in one call.
func (a *Agent) Run(ctx context.Context, cc *ingest.CourseContext, opts router.Options) (*CourseStructure, error) {
	prepared, err := a.PreparePrompts(cc)
	if err != nil {
		return nil, err
	}
	return a.Generate(ctx, prepared, opts)
}
