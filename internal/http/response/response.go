package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/courseforge-backend/internal/ingest"
	"github.com/yungbote/courseforge-backend/internal/platform/apierr"
)

// ErrorBody is the uniform error payload. Detail is human-readable; Code is
// a stable machine string clients can switch on.
type ErrorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func Error(c *gin.Context, status int, code, detail string) {
	c.JSON(status, ErrorBody{Detail: detail, Code: code})
}

func AbortError(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, ErrorBody{Detail: detail, Code: code})
}

// FromError maps common service-layer errors onto HTTP statuses. Cross-tenant
// and missing rows both surface as 404 so existence never leaks.
func FromError(c *gin.Context, err error) {
	var (
		apiErr      *apierr.Error
		unsupported *ingest.UnsupportedFormatError
	)
	switch {
	case errors.As(err, &apiErr):
		Error(c, apiErr.Status, apiErr.Code, apiErr.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		Error(c, http.StatusNotFound, "not_found", "resource not found")
	case errors.As(err, &unsupported):
		Error(c, http.StatusUnsupportedMediaType, "unsupported_format", unsupported.Error())
	default:
		Error(c, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
