package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/types"
)

// CostReportRow is one aggregated line of the per-tenant cost report.
type CostReportRow struct {
	Action    string  `json:"action"`
	Provider  string  `json:"provider"`
	ModelID   string  `json:"model_id"`
	Calls     int64   `json:"calls"`
	Failures  int64   `json:"failures"`
	TokensIn  int64   `json:"tokens_in"`
	TokensOut int64   `json:"tokens_out"`
	CostUSD   float64 `json:"cost_usd"`
}

type LLMCallRepo interface {
	// Create writes a ledger row on a session detached from any surrounding
	// transaction, so a business rollback cannot take the row with it.
	Create(ctx context.Context, call *types.LLMCall) error
	CostReport(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]CostReportRow, error)
}

type llmCallRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLLMCallRepo(db *gorm.DB, baseLog *logger.Logger) LLMCallRepo {
	return &llmCallRepo{db: db, log: baseLog.With("repo", "LLMCall")}
}

func (r *llmCallRepo) Create(ctx context.Context, call *types.LLMCall) error {
	session := r.db.Session(&gorm.Session{NewDB: true}).WithContext(ctx)
	return session.Create(call).Error
}

func (r *llmCallRepo) CostReport(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]CostReportRow, error) {
	var rows []CostReportRow
	err := r.db.WithContext(ctx).
		Model(&types.LLMCall{}).
		Select(`action, provider, model_id,
			COUNT(*) AS calls,
			SUM(CASE WHEN success THEN 0 ELSE 1 END) AS failures,
			COALESCE(SUM(tokens_in), 0) AS tokens_in,
			COALESCE(SUM(tokens_out), 0) AS tokens_out,
			COALESCE(SUM(cost_usd), 0) AS cost_usd`).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since).
		Group("action, provider, model_id").
		Order("cost_usd DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
