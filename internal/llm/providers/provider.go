package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// ModelRequest is a single model invocation as the router hands it to an
// adapter. Routing concerns (action, strategy, fallback) never reach this
// layer.
type ModelRequest struct {
	ModelID      string
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Completion carries the raw model output plus the per-call metadata the
// ledger and cost accounting need. Token counts stay nil when the vendor
// does not report usage.
type Completion struct {
	Content   string
	Provider  string
	ModelID   string
	TokensIn  *int
	TokensOut *int
	LatencyMS int64
}

type Provider interface {
	Name() string
	Complete(ctx context.Context, req ModelRequest) (*Completion, error)
	// CompleteStructured returns the raw JSON payload after it has been
	// validated against the schema. Validation failure is a
	// *StructuredOutputError (retryable).
	CompleteStructured(ctx context.Context, req ModelRequest, schema *Schema) (json.RawMessage, *Completion, error)
	Enabled() bool
	SetEnabled(bool)
}

// StructuredOutputError marks a response that came back but did not satisfy
// the declared schema. The router treats it like any other transient failure.
type StructuredOutputError struct {
	Provider string
	ModelID  string
	Err      error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("structured output from %s/%s invalid: %v", e.Provider, e.ModelID, e.Err)
}

func (e *StructuredOutputError) Unwrap() error { return e.Err }

type httpError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// enabledState implements the runtime enable/disable flag shared by all
// adapters. Single writer (operator policy), many readers.
type enabledState struct {
	disabled atomic.Bool
}

func (e *enabledState) Enabled() bool     { return !e.disabled.Load() }
func (e *enabledState) SetEnabled(v bool) { e.disabled.Store(!v) }

func intPtr(v int) *int { return &v }
