package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/services"
)

type SlideMappingHandler struct {
	log                 *logger.Logger
	slideMappingService services.SlideMappingService
}

func NewSlideMappingHandler(log *logger.Logger, slideMappingService services.SlideMappingService) *SlideMappingHandler {
	return &SlideMappingHandler{log: log.With("handler", "SlideMapping"), slideMappingService: slideMappingService}
}

type slideMappingRequest struct {
	Mappings []services.SlideMappingEntry `json:"mappings" binding:"required"`
}

// POST /api/v1/courses/:id/slide-mapping
// 201 when every entry lands, 207 on a partial accept, 422 when nothing is
// usable.
func (h *SlideMappingHandler) Set(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req slideMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Mappings) == 0 {
		response.Error(c, http.StatusBadRequest, "invalid_request", "mappings must not be empty")
		return
	}

	accepted, rejected, err := h.slideMappingService.Set(c.Request.Context(), tc, courseID, req.Mappings)
	if err != nil {
		response.FromError(c, err)
		return
	}

	body := gin.H{"accepted": accepted, "rejected": rejected}
	switch {
	case len(accepted) == 0:
		body["detail"] = "no valid mapping entries"
		body["code"] = "invalid_mapping"
		c.JSON(http.StatusUnprocessableEntity, body)
	case len(rejected) > 0:
		c.JSON(http.StatusMultiStatus, body)
	default:
		c.JSON(http.StatusCreated, body)
	}
}

// GET /api/v1/courses/:id/slide-mapping
func (h *SlideMappingHandler) List(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	mappings, err := h.slideMappingService.List(c.Request.Context(), tc, courseID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings})
}
