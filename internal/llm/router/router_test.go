package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/courseforge-backend/internal/llm/providers"
	"github.com/yungbote/courseforge-backend/internal/llm/registry"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const routingCatalog = `
models:
  m_a:
    provider: p_a
    capabilities: [structured_output]
    max_context: 128000
    cost_per_1k: {input: 0.001, output: 0.002}
  m_b:
    provider: p_b
    capabilities: [structured_output]
    max_context: 128000
    cost_per_1k: {input: 0.01, output: 0.03}
  m_c:
    provider: p_c
    capabilities: [structured_output]
    max_context: 32000
    cost_per_1k: {input: 0.0005, output: 0.001}
actions:
  a:
    description: test action
    requires: [structured_output]
routing:
  a:
    default: [m_a]
    quality: [m_b]
    wide: [m_b, m_c, m_a]
`

type scriptedCall struct {
	content   string
	tokensIn  *int
	tokensOut *int
	err       error
}

// fakeProvider replays a script of results, one per call, repeating the
// last entry once the script runs out.
type fakeProvider struct {
	name    string
	enabled bool

	mu     sync.Mutex
	script []scriptedCall
	calls  int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) Enabled() bool     { return f.enabled }
func (f *fakeProvider) SetEnabled(v bool) { f.enabled = v }

func (f *fakeProvider) next() scriptedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	return f.script[idx]
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) Complete(ctx context.Context, req providers.ModelRequest) (*providers.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := f.next()
	if call.err != nil {
		return nil, call.err
	}
	return &providers.Completion{
		Content:   call.content,
		Provider:  f.name,
		ModelID:   req.ModelID,
		TokensIn:  call.tokensIn,
		TokensOut: call.tokensOut,
		LatencyMS: 5,
	}, nil
}

func (f *fakeProvider) CompleteStructured(ctx context.Context, req providers.ModelRequest, schema *providers.Schema) (json.RawMessage, *providers.Completion, error) {
	c, err := f.Complete(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	return json.RawMessage(c.Content), c, nil
}

func newTestRouter(t *testing.T, provs map[string]providers.Provider, retries int, cb Callback) *Router {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	reg, err := registry.Parse([]byte(routingCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return New(log, reg, provs, retries, cb)
}

func ok(content string, in, out int) scriptedCall {
	return scriptedCall{content: content, tokensIn: &in, tokensOut: &out}
}

func TestCompleteSuccessEnrichesResponse(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok("hello", 1000, 500)}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 2, nil)

	resp, err := r.Complete(context.Background(), "a", "hi", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Provider != "p_a" || resp.ModelID != "m_a" {
		t.Fatalf("wrong routing: %+v", resp)
	}
	if resp.Action != "a" || resp.Strategy != "default" {
		t.Fatalf("provenance not set: %+v", resp)
	}
	if resp.CostUSD == nil || *resp.CostUSD != 0.002 {
		t.Fatalf("expected cost 0.002, got %v", resp.CostUSD)
	}
	if resp.FinishedAt.IsZero() {
		t.Fatal("FinishedAt not set")
	}
}

func TestCrossStrategyFallback(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok("fallback", 1000, 500)}}
	pb := &fakeProvider{name: "p_b", enabled: true, script: []scriptedCall{{err: errors.New("boom")}}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa, "p_b": pb}, 2, nil)

	resp, err := r.Complete(context.Background(), "a", "hi", Options{Strategy: "quality"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Provider != "p_a" {
		t.Fatalf("expected fallback to p_a, got %s", resp.Provider)
	}
	if !strings.Contains(resp.Strategy, "default") || !strings.Contains(resp.Strategy, "quality") {
		t.Fatalf("strategy should record the hop, got %q", resp.Strategy)
	}
	if resp.CostUSD == nil || *resp.CostUSD != 0.002 {
		t.Fatalf("expected cost 0.002, got %v", resp.CostUSD)
	}
	if got := pb.callCount(); got != 2 {
		t.Fatalf("expected 2 attempts against m_b before hopping, got %d", got)
	}
}

func TestNoSelfFallbackFromDefault(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{{err: errors.New("down")}}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 2, nil)

	_, err := r.Complete(context.Background(), "a", "hi", Options{})
	var amf *AllModelsFailedError
	if !errors.As(err, &amf) {
		t.Fatalf("expected AllModelsFailedError, got %v", err)
	}
	if len(amf.StrategiesTried) != 1 || amf.StrategiesTried[0] != "default" {
		t.Fatalf("default must not fall back to itself: %v", amf.StrategiesTried)
	}
	if got := pa.callCount(); got != 2 {
		t.Fatalf("expected exactly max_retries attempts, got %d", got)
	}
	if len(amf.Errors) != 1 || amf.Errors[0].ModelID != "m_a" {
		t.Fatalf("error trail wrong: %+v", amf.Errors)
	}
}

func TestChainOrderWithSkips(t *testing.T) {
	// m_b's provider is disabled, m_c's provider is never registered, so the
	// wide chain must land on m_a with two skip entries in the trail.
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{{err: errors.New("down")}}}
	pb := &fakeProvider{name: "p_b", enabled: false, script: []scriptedCall{ok("never", 1, 1)}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa, "p_b": pb}, 1, nil)

	_, err := r.Complete(context.Background(), "a", "hi", Options{Strategy: "wide"})
	var amf *AllModelsFailedError
	if !errors.As(err, &amf) {
		t.Fatalf("expected AllModelsFailedError, got %v", err)
	}
	if got := pb.callCount(); got != 0 {
		t.Fatalf("disabled provider must not be called, got %d calls", got)
	}

	var ids []string
	for _, me := range amf.Errors {
		ids = append(ids, me.ModelID)
	}
	// wide chain, then the default chain hop retries m_a.
	want := []string{"m_b", "m_c", "m_a", "m_a"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("trail order %v, want %v", ids, want)
	}
	if !strings.Contains(amf.Errors[0].Err, "disabled") {
		t.Fatalf("m_b entry should say disabled: %s", amf.Errors[0].Err)
	}
	if !strings.Contains(amf.Errors[1].Err, "not registered") {
		t.Fatalf("m_c entry should say not registered: %s", amf.Errors[1].Err)
	}
}

func TestRetryThenSucceedSameModel(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{
		{err: errors.New("transient")},
		ok("second try", 10, 10),
	}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 3, nil)

	resp, err := r.Complete(context.Background(), "a", "hi", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "second try" {
		t.Fatalf("expected retry to succeed, got %q", resp.Content)
	}
	if got := pa.callCount(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
}

func TestCancellationIsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok("x", 1, 1)}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 5, nil)

	_, err := r.Complete(ctx, "a", "hi", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	if got := pa.callCount(); got > 1 {
		t.Fatalf("cancellation must not be retried, got %d calls", got)
	}
}

func TestUnknownActionPropagates(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok("x", 1, 1)}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 2, nil)

	_, err := r.Complete(context.Background(), "no_such_action", "hi", Options{})
	if !errors.Is(err, registry.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestLedgerCallbackFiresPerTerminalAttempt(t *testing.T) {
	type event struct {
		modelID string
		success bool
		errMsg  string
	}
	events := make(chan event, 8)
	cb := func(resp *Response, success bool, errorMessage string) {
		events <- event{modelID: resp.ModelID, success: success, errMsg: errorMessage}
	}

	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok("fallback", 10, 10)}}
	pb := &fakeProvider{name: "p_b", enabled: true, script: []scriptedCall{{err: errors.New("boom")}}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa, "p_b": pb}, 2, cb)

	if _, err := r.Complete(context.Background(), "a", "hi", Options{Strategy: "quality"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got := map[string]event{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-events:
			got[e.modelID] = e
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for ledger events, have %v", got)
		}
	}
	if e := got["m_b"]; e.success || !strings.Contains(e.errMsg, "boom") {
		t.Fatalf("m_b failure event wrong: %+v", e)
	}
	if e := got["m_a"]; !e.success || e.errMsg != "" {
		t.Fatalf("m_a success event wrong: %+v", e)
	}
}

func TestLedgerCallbackPanicIsContained(t *testing.T) {
	fired := make(chan struct{}, 1)
	cb := func(resp *Response, success bool, errorMessage string) {
		fired <- struct{}{}
		panic("ledger exploded")
	}
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok("x", 1, 1)}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 2, cb)

	resp, err := r.Complete(context.Background(), "a", "hi", Options{})
	if err != nil || resp == nil {
		t.Fatalf("business call must survive callback panic: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestCompleteStructuredReturnsParsed(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{ok(`{"v":1}`, 4, 2)}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 2, nil)

	schema := &providers.Schema{Name: "v_schema", Definition: map[string]any{"type": "object"}}
	res, err := r.CompleteStructured(context.Background(), "a", "hi", schema, Options{})
	if err != nil {
		t.Fatalf("CompleteStructured: %v", err)
	}
	if string(res.Parsed) != `{"v":1}` {
		t.Fatalf("parsed payload wrong: %s", res.Parsed)
	}
	if res.Response == nil || res.Response.Provider != "p_a" {
		t.Fatalf("response missing: %+v", res.Response)
	}
}

func TestMissingTokenCountsSkipCost(t *testing.T) {
	pa := &fakeProvider{name: "p_a", enabled: true, script: []scriptedCall{{content: "no usage"}}}
	r := newTestRouter(t, map[string]providers.Provider{"p_a": pa}, 2, nil)

	resp, err := r.Complete(context.Background(), "a", "hi", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.CostUSD != nil {
		t.Fatalf("cost must stay nil without usage, got %v", *resp.CostUSD)
	}
}
