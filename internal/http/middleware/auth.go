package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/services"
)

const tenantContextKey = "tenantContext"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "Auth"), authService: authService}
}

// RequireAPIKey resolves the X-API-Key header into a tenant context. It is
// the only place a TenantContext is minted.
func (am *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-API-Key")
		if raw == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing_api_key", "missing X-API-Key header")
			return
		}
		tc, err := am.authService.Authenticate(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrExpiredAPIKey):
				response.AbortError(c, http.StatusUnauthorized, "expired_api_key", "API key has expired")
			case errors.Is(err, services.ErrInvalidAPIKey):
				response.AbortError(c, http.StatusUnauthorized, "invalid_api_key", "invalid API key")
			default:
				am.log.Error("authentication lookup failed", "error", err)
				response.AbortError(c, http.StatusInternalServerError, "internal_error", "internal error")
			}
			return
		}
		c.Set(tenantContextKey, tc)
		c.Next()
	}
}

// TenantFromContext returns the tenant minted by RequireAPIKey, or nil on
// unauthenticated routes.
func TenantFromContext(c *gin.Context) *services.TenantContext {
	v, ok := c.Get(tenantContextKey)
	if !ok {
		return nil
	}
	tc, _ := v.(*services.TenantContext)
	return tc
}
