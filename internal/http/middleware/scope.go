package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseforge-backend/internal/http/response"
	"github.com/yungbote/courseforge-backend/internal/platform/logger"
	"github.com/yungbote/courseforge-backend/internal/ratelimit"
)

const rateWindow = time.Minute

type ScopeMiddleware struct {
	log     *logger.Logger
	limiter ratelimit.Limiter
}

func NewScopeMiddleware(log *logger.Logger, limiter ratelimit.Limiter) *ScopeMiddleware {
	return &ScopeMiddleware{log: log.With("middleware", "Scope"), limiter: limiter}
}

// RequireScope admits callers holding any of the listed scopes, then charges
// the request against that scope's per-minute budget. The first listed scope
// the tenant holds is the one billed.
func (sm *ScopeMiddleware) RequireScope(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc := TenantFromContext(c)
		if tc == nil {
			response.AbortError(c, http.StatusUnauthorized, "missing_api_key", "authentication required")
			return
		}

		var granted string
		for _, scope := range scopes {
			if tc.HasScope(scope) {
				granted = scope
				break
			}
		}
		if granted == "" {
			response.AbortError(c, http.StatusForbidden, "insufficient_scope",
				fmt.Sprintf("key lacks required scope (need one of %v)", scopes))
			return
		}

		key := tc.TenantID.String() + ":" + granted
		allowed, retryAfter := sm.limiter.Check(key, tc.LimitForScope(granted), rateWindow)
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			sm.log.Warn("rate limit exceeded",
				"tenant_id", tc.TenantID.String(), "scope", granted, "retry_after_sec", retryAfter)
			response.AbortError(c, http.StatusTooManyRequests, "rate_limited",
				"rate limit exceeded for scope "+granted)
			return
		}
		c.Next()
	}
}
