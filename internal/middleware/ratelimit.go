package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/metrics"
	"github.com/intelligence-service/platform/internal/ratelimit"
)

// RateLimitMiddleware rejects clients that exceed their request budget.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	limit   int
	period  string
	logger  *logging.Logger
}

// NewRateLimitMiddleware creates a new rate limiting middleware.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, limit int, period string, logger *logging.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, limit: limit, period: period, logger: logger}
}

// Handler returns the rate limiting middleware handler.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := ClientID(r)

		decision, err := m.limiter.Check(r.Context(), clientID)
		if err != nil {
			// Limiter failures already fail open inside Check; just record.
			m.logger.WithContext(r.Context()).WithError(err).Warn("rate limit check degraded")
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset, 10))

		if !decision.Allowed {
			m.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"client": clientID,
				"path":   r.URL.Path,
				"method": r.Method,
			})
			metrics.RecordRateLimitDrop(r.URL.Path)

			svcErr := errors.RateLimitExceeded(m.limit, m.period)
			httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientID identifies the caller for rate limiting purposes: the bearer token
// when present, otherwise the client IP (honoring X-Forwarded-For).
func ClientID(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return auth
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
