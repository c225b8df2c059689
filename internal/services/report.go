package services

import (
	"context"
	"time"

	"github.com/yungbote/courseforge-backend/internal/data/repos"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
)

const defaultCostWindow = 24 * time.Hour

// CostReport is the tenant-scoped spend summary over a time window.
type CostReport struct {
	WindowStart   time.Time             `json:"window_start"`
	WindowEnd     time.Time             `json:"window_end"`
	Rows          []repos.CostReportRow `json:"rows"`
	TotalCalls    int64                 `json:"total_calls"`
	TotalFailures int64                 `json:"total_failures"`
	TotalCostUSD  float64               `json:"total_cost_usd"`
}

type ReportService interface {
	// Cost aggregates the tenant's recorded model calls over the window.
	// A non-positive window takes the 24h default.
	Cost(ctx context.Context, tc *TenantContext, window time.Duration) (*CostReport, error)
}

type reportService struct {
	log   *logger.Logger
	calls repos.LLMCallRepo
}

func NewReportService(log *logger.Logger, calls repos.LLMCallRepo) ReportService {
	return &reportService{log: log.With("service", "Report"), calls: calls}
}

func (s *reportService) Cost(ctx context.Context, tc *TenantContext, window time.Duration) (*CostReport, error) {
	if window <= 0 {
		window = defaultCostWindow
	}
	now := time.Now().UTC()
	since := now.Add(-window)

	rows, err := s.calls.CostReport(ctx, tc.TenantID, since)
	if err != nil {
		return nil, err
	}

	report := &CostReport{
		WindowStart: since,
		WindowEnd:   now,
		Rows:        rows,
	}
	for _, row := range rows {
		report.TotalCalls += row.Calls
		report.TotalFailures += row.Failures
		report.TotalCostUSD += row.CostUSD
	}
	return report, nil
}
