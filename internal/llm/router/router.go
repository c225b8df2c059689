package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/courseforge-backend/internal/llm/providers"
	"github.com/yungbote/courseforge-backend/internal/llm/registry"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

// Response is the router-level view of a completed call: the provider
// completion enriched with routing provenance and cost.
type Response struct {
	Content    string
	Provider   string
	ModelID    string
	TokensIn   *int
	TokensOut  *int
	LatencyMS  int64
	CostUSD    *float64
	Action     string
	Strategy   string
	TenantID   *uuid.UUID
	FinishedAt time.Time
}

// StructuredResult pairs the schema-validated payload with its response.
type StructuredResult struct {
	Parsed   json.RawMessage
	Response *Response
}

// Options tune a single routed call. Zero values mean: no system prompt,
// temperature 0, provider-default max tokens, default strategy, no tenant
// attribution.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Strategy     string
	TenantID     *uuid.UUID
}

// Callback receives every terminal per-model attempt, success or failure.
// It runs in its own goroutine; panics are recovered and logged.
type Callback func(resp *Response, success bool, errorMessage string)

// ModelError records one exhausted model in the error trail.
type ModelError struct {
	ModelID string
	Err     string
}

// AllModelsFailedError is returned when every model in every tried strategy
// chain has been exhausted.
type AllModelsFailedError struct {
	Action          string
	StrategiesTried []string
	Errors          []ModelError
}

func (e *AllModelsFailedError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, me := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", me.ModelID, me.Err))
	}
	return fmt.Sprintf("all models failed for action %q (strategies %s): %s",
		e.Action, strings.Join(e.StrategiesTried, ", "), strings.Join(parts, "; "))
}

// Router dispatches actions across the model catalog with per-model retries
// and cross-strategy fallback to default. Safe for concurrent use; the only
// mutable state it touches is the providers' enabled flags.
type Router struct {
	log        *logger.Logger
	registry   *registry.Registry
	providers  map[string]providers.Provider
	maxRetries int
	callback   Callback
}

func New(log *logger.Logger, reg *registry.Registry, provs map[string]providers.Provider, maxRetries int, cb Callback) *Router {
	if maxRetries < 1 {
		maxRetries = 2
	}
	return &Router{
		log:        log.With("component", "model_router"),
		registry:   reg,
		providers:  provs,
		maxRetries: maxRetries,
		callback:   cb,
	}
}

func (r *Router) Complete(ctx context.Context, action, prompt string, opts Options) (*Response, error) {
	_, resp, err := r.run(ctx, action, prompt, nil, opts)
	return resp, err
}

func (r *Router) CompleteStructured(ctx context.Context, action, prompt string, schema *providers.Schema, opts Options) (*StructuredResult, error) {
	parsed, resp, err := r.run(ctx, action, prompt, schema, opts)
	if err != nil {
		return nil, err
	}
	return &StructuredResult{Parsed: parsed, Response: resp}, nil
}

func (r *Router) run(ctx context.Context, action, prompt string, schema *providers.Schema, opts Options) (json.RawMessage, *Response, error) {
	requested := opts.Strategy
	if requested == "" {
		requested = registry.DefaultStrategy
	}

	strategiesTried := []string{requested}
	var trail []ModelError

	parsed, resp, err := r.attemptChain(ctx, action, requested, requested, prompt, schema, opts, &trail)
	if err == nil {
		return parsed, resp, nil
	}
	if ctx.Err() != nil {
		return nil, nil, err
	}

	// Single cross-strategy hop. The default strategy never falls back to
	// itself.
	if requested != registry.DefaultStrategy {
		annotated := requested + "→" + registry.DefaultStrategy
		r.log.Warn("strategy chain exhausted, falling back to default",
			"action", action, "strategy", requested)
		strategiesTried = append(strategiesTried, registry.DefaultStrategy)
		parsed, resp, err = r.attemptChain(ctx, action, registry.DefaultStrategy, annotated, prompt, schema, opts, &trail)
		if err == nil {
			return parsed, resp, nil
		}
		if ctx.Err() != nil {
			return nil, nil, err
		}
	}

	if _, ok := err.(*chainExhaustedError); !ok {
		// Registry-level failure (unknown action), not a model failure.
		return nil, nil, err
	}
	return nil, nil, &AllModelsFailedError{
		Action:          action,
		StrategiesTried: strategiesTried,
		Errors:          trail,
	}
}

// chainExhaustedError is an internal sentinel separating "every model in the
// chain failed" from registry lookup errors.
type chainExhaustedError struct{ action, strategy string }

func (e *chainExhaustedError) Error() string {
	return fmt.Sprintf("chain exhausted for %s/%s", e.action, e.strategy)
}

// attemptChain walks one strategy chain in order. strategyLabel is what ends
// up on the response and in ledger rows; it differs from strategy only on the
// cross-strategy hop.
func (r *Router) attemptChain(ctx context.Context, action, strategy, strategyLabel, prompt string, schema *providers.Schema, opts Options, trail *[]ModelError) (json.RawMessage, *Response, error) {
	chain, err := r.registry.Chain(action, strategy)
	if err != nil {
		return nil, nil, err
	}

	for _, model := range chain {
		provider, registered := r.providers[model.Provider]
		if !registered {
			r.log.Warn("skipping model, provider not registered",
				"action", action, "model_id", model.ModelID, "model_provider", model.Provider)
			*trail = append(*trail, ModelError{ModelID: model.ModelID,
				Err: fmt.Sprintf("provider %q not registered (skipped)", model.Provider)})
			continue
		}
		if !provider.Enabled() {
			r.log.Warn("skipping model, provider disabled",
				"action", action, "model_id", model.ModelID, "model_provider", model.Provider)
			*trail = append(*trail, ModelError{ModelID: model.ModelID,
				Err: fmt.Sprintf("provider %q disabled (skipped)", model.Provider)})
			continue
		}

		parsed, resp, attemptErr := r.attemptModel(ctx, provider, model, action, strategyLabel, prompt, schema, opts)
		if attemptErr == nil {
			return parsed, resp, nil
		}
		*trail = append(*trail, ModelError{ModelID: model.ModelID, Err: attemptErr.Error()})
		if ctx.Err() != nil {
			return nil, nil, attemptErr
		}
	}
	return nil, nil, &chainExhaustedError{action: action, strategy: strategy}
}

// attemptModel runs the per-model retry loop. Cancellation is terminal.
func (r *Router) attemptModel(ctx context.Context, provider providers.Provider, model registry.ModelConfig, action, strategyLabel, prompt string, schema *providers.Schema, opts Options) (json.RawMessage, *Response, error) {
	req := providers.ModelRequest{
		ModelID:      model.ModelID,
		Prompt:       prompt,
		SystemPrompt: opts.SystemPrompt,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		var (
			parsed     json.RawMessage
			completion *providers.Completion
			err        error
		)
		if schema != nil {
			parsed, completion, err = provider.CompleteStructured(ctx, req, schema)
		} else {
			completion, err = provider.Complete(ctx, req)
		}
		if err == nil {
			resp := r.buildResponse(completion, model, action, strategyLabel, opts.TenantID)
			r.emit(resp, true, "")
			return parsed, resp, nil
		}

		lastErr = err
		r.log.Warn("model attempt failed",
			"action", action, "model_id", model.ModelID, "model_provider", provider.Name(),
			"attempt", attempt, "max_retries", r.maxRetries, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	failure := &Response{
		Provider:   provider.Name(),
		ModelID:    model.ModelID,
		Action:     action,
		Strategy:   strategyLabel,
		TenantID:   opts.TenantID,
		FinishedAt: time.Now().UTC(),
	}
	r.emit(failure, false, lastErr.Error())
	return nil, nil, lastErr
}

func (r *Router) buildResponse(c *providers.Completion, model registry.ModelConfig, action, strategyLabel string, tenantID *uuid.UUID) *Response {
	resp := &Response{
		Content:    c.Content,
		Provider:   c.Provider,
		ModelID:    c.ModelID,
		TokensIn:   c.TokensIn,
		TokensOut:  c.TokensOut,
		LatencyMS:  c.LatencyMS,
		Action:     action,
		Strategy:   strategyLabel,
		TenantID:   tenantID,
		FinishedAt: time.Now().UTC(),
	}
	if c.TokensIn != nil && c.TokensOut != nil {
		cost := model.EstimateCost(*c.TokensIn, *c.TokensOut)
		resp.CostUSD = &cost
	}
	return resp
}

// emit fires the ledger callback off the request path.
func (r *Router) emit(resp *Response, success bool, errorMessage string) {
	if r.callback == nil {
		return
	}
	cb := r.callback
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("ledger callback panicked",
					"action", resp.Action, "model_id", resp.ModelID, "panic", rec)
			}
		}()
		cb(resp, success, errorMessage)
	}()
}
