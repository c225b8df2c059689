package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/services"
)

type ReportHandler struct {
	log           *logger.Logger
	reportService services.ReportService
}

func NewReportHandler(log *logger.Logger, reportService services.ReportService) *ReportHandler {
	return &ReportHandler{log: log.With("handler", "Report"), reportService: reportService}
}

// GET /api/v1/reports/cost?window=24h
func (h *ReportHandler) Cost(c *gin.Context) {
	tc := middleware.TenantFromContext(c)

	var window time.Duration
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid_request",
				"window must be a positive Go duration, e.g. 24h or 30m")
			return
		}
		window = parsed
	}

	report, err := h.reportService.Cost(c.Request.Context(), tc, window)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
