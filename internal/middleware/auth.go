package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
)

// Identity is the authenticated caller extracted from an access token.
type Identity struct {
	UserID    string
	Matricule string
	Role      string
	Clearance string
}

// TokenValidator validates an access token and returns the caller identity.
type TokenValidator interface {
	Validate(token string) (Identity, error)
}

type identityKeyType struct{}

var identityKey identityKeyType

// AuthMiddleware authenticates requests with a bearer access token.
type AuthMiddleware struct {
	validator TokenValidator
	logger    *logging.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware. Requests to any
// of skipPaths pass through unauthenticated.
func NewAuthMiddleware(validator TokenValidator, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
		skipPaths: skip,
	}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := BearerToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		identity, err := m.validator.Validate(token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		ctx = logging.WithUserID(ctx, identity.UserID)
		ctx = logging.WithRole(ctx, identity.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		svcErr = errors.Unauthorized("Authentication failed")
	}

	w.Header().Set("WWW-Authenticate", "Bearer")
	httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed")
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.Unauthorized("Missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.Unauthorized("Invalid Authorization header format")
	}
	return parts[1], nil
}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the caller identity, if authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// RequireRole guards a handler so only the listed roles may pass.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httputil.Unauthorized(w, "")
				return
			}
			if !allowed[identity.Role] {
				svcErr := errors.Forbidden("Insufficient role for this operation")
				httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
