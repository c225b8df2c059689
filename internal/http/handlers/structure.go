package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/services"
)

type StructureHandler struct {
	log              *logger.Logger
	structureService services.StructureService
}

func NewStructureHandler(log *logger.Logger, structureService services.StructureService) *StructureHandler {
	return &StructureHandler{log: log.With("handler", "Structure"), structureService: structureService}
}

// POST /api/v1/courses/:id/structure/generate
// 202 when a run is queued, 200 when an identical material set already
// produced a structure, 409 while a run is in flight, 422 with no ready
// material.
func (h *StructureHandler) Generate(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.structureService.Generate(c.Request.Context(), tc, courseID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoReadyMaterial):
			response.Error(c, http.StatusUnprocessableEntity, "no_ready_material",
				"course has no ready material to generate from")
		case errors.Is(err, services.ErrGenerationInProgress):
			body := gin.H{
				"detail": "structure generation already in progress",
				"code":   "generation_in_progress",
			}
			if result != nil && result.Run != nil {
				body["run"] = result.Run
			}
			c.JSON(http.StatusConflict, body)
		default:
			response.FromError(c, err)
		}
		return
	}

	if result.Status == services.GenerateIdempotent {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// GET /api/v1/courses/:id/structure/runs/latest
func (h *StructureHandler) LatestRun(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	run, err := h.structureService.LatestRun(c.Request.Context(), tc, courseID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GET /api/v1/structure-runs/:run_id
func (h *StructureHandler) GetRun(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	runID, ok := pathUUID(c, "run_id")
	if !ok {
		return
	}
	run, err := h.structureService.GetRun(c.Request.Context(), tc, runID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
