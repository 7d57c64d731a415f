package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
)

// GatewaySecretMiddleware rejects requests that did not pass through the API
// gateway. Services sit on a private network and only accept traffic carrying
// the shared gateway secret, unless direct access is explicitly allowed for
// development.
type GatewaySecretMiddleware struct {
	secret            string
	allowDirectAccess bool
	logger            *logging.Logger
	skipPaths         map[string]bool
}

// NewGatewaySecretMiddleware creates a new gateway secret check.
func NewGatewaySecretMiddleware(secret string, allowDirectAccess bool, logger *logging.Logger, skipPaths []string) *GatewaySecretMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &GatewaySecretMiddleware{
		secret:            secret,
		allowDirectAccess: allowDirectAccess,
		logger:            logger,
		skipPaths:         skip,
	}
}

// Handler returns the middleware handler.
func (m *GatewaySecretMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.allowDirectAccess || m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(httputil.GatewaySecretHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(m.secret)) != 1 {
			m.logger.LogSecurityEvent(r.Context(), "gateway_secret_rejected", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
				"remote": r.RemoteAddr,
			})
			svcErr := errors.Forbidden("Direct access to this service is not allowed")
			httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
