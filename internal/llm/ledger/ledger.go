package ledger

import (
	"context"
	"time"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/llm/router"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

// Writer turns router events into persisted llm_call rows. The repo writes on
// its own session, so a ledger row survives any rollback of the business
// transaction. A write failure is logged together with the business error and
// otherwise swallowed.
type Writer struct {
	log     *logger.Logger
	calls   repos.LLMCallRepo
	timeout time.Duration
}

func NewWriter(log *logger.Logger, calls repos.LLMCallRepo) *Writer {
	return &Writer{
		log:     log.With("component", "llm_ledger"),
		calls:   calls,
		timeout: 10 * time.Second,
	}
}

// Callback adapts the writer to the router's ledger hook.
func (w *Writer) Callback() router.Callback {
	return func(resp *router.Response, success bool, errorMessage string) {
		w.Record(resp, success, errorMessage)
	}
}

func (w *Writer) Record(resp *router.Response, success bool, errorMessage string) {
	// Detached from the request context on purpose: the business request may
	// already be finished or cancelled when this runs.
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	call := &types.LLMCall{
		TenantID:     resp.TenantID,
		Action:       resp.Action,
		Strategy:     resp.Strategy,
		Provider:     resp.Provider,
		ModelID:      resp.ModelID,
		TokensIn:     resp.TokensIn,
		TokensOut:    resp.TokensOut,
		LatencyMS:    resp.LatencyMS,
		CostUSD:      resp.CostUSD,
		Success:      success,
		ErrorMessage: errorMessage,
	}
	if err := w.calls.Create(ctx, call); err != nil {
		w.log.Error("ledger write failed",
			"action", resp.Action,
			"model_id", resp.ModelID,
			"model_provider", resp.Provider,
			"call_success", success,
			"call_error", errorMessage,
			"error", err)
	}
}
