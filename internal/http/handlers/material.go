package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/middleware"
	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/services"
)

type MaterialHandler struct {
	log             *logger.Logger
	materialService services.MaterialService
}

func NewMaterialHandler(log *logger.Logger, materialService services.MaterialService) *MaterialHandler {
	return &MaterialHandler{log: log.With("handler", "Material"), materialService: materialService}
}

type addURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// POST /api/v1/courses/:id/materials
// Multipart uploads carry the raw file; JSON bodies register a web source.
// Either way ingestion runs in the background and the row is returned 202.
func (h *MaterialHandler) Add(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid_request", "multipart upload needs a \"file\" part")
			return
		}
		f, err := header.Open()
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid_request", "unreadable file part")
			return
		}
		defer f.Close()

		material, err := h.materialService.UploadFile(ctx, tc, courseID,
			header.Filename, header.Header.Get("Content-Type"), header.Size, f)
		if err != nil {
			response.FromError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, material)
		return
	}

	var req addURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	material, err := h.materialService.AddURL(ctx, tc, courseID, req.URL)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, material)
}

// GET /api/v1/courses/:id/materials
func (h *MaterialHandler) List(c *gin.Context) {
	tc := middleware.TenantFromContext(c)
	courseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	materials, err := h.materialService.List(c.Request.Context(), tc, courseID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"materials": materials})
}
