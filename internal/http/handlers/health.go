package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/data/db"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/platform/objectstore"
)

type HealthHandler struct {
	log   *logger.Logger
	gdb   *gorm.DB
	store *objectstore.Store
}

func NewHealthHandler(log *logger.Logger, gdb *gorm.DB, store *objectstore.Store) *HealthHandler {
	return &HealthHandler{log: log.With("handler", "Health"), gdb: gdb, store: store}
}

// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	ctx := c.Request.Context()
	checks := gin.H{"db": "ok", "s3": "ok"}
	status := "ok"

	if err := db.Ping(ctx, h.gdb); err != nil {
		h.log.Warn("db health check failed", "error", err)
		checks["db"] = "unreachable"
		status = "degraded"
	}
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.log.Warn("object store health check failed", "error", err)
			checks["s3"] = "unreachable"
			status = "degraded"
		}
	} else {
		checks["s3"] = "not configured"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
