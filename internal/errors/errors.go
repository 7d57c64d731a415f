// Package errors defines the service error taxonomy shared by all platform
// services. Every error that crosses an HTTP boundary is a ServiceError so
// handlers can map it to a status code and a stable machine-readable code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error category across services.
type ErrorCode string

const (
	CodeBadRequest         ErrorCode = "BAD_REQUEST"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	CodeRateLimited        ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	CodeBadGateway         ErrorCode = "BAD_GATEWAY"
	CodeInternal           ErrorCode = "INTERNAL"
)

// ServiceError carries an error category, an HTTP status and optional
// structured details.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails returns the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Err:        err,
	}
}

// BadRequest signals a malformed or invalid request.
func BadRequest(message string) *ServiceError {
	return newError(CodeBadRequest, http.StatusBadRequest, message, nil)
}

// Unauthorized signals missing or invalid credentials.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// Forbidden signals insufficient permissions.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound signals a missing resource.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Conflict signals a uniqueness or state conflict.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// InvalidToken signals a token that failed validation.
func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", err)
}

// RateLimitExceeded signals the client exceeded its request budget.
func RateLimitExceeded(limit int, period string) *ServiceError {
	e := newError(CodeRateLimited, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
	return e.WithDetails("limit", limit).WithDetails("period", period)
}

// ServiceUnavailable signals a dependency that cannot currently serve.
func ServiceUnavailable(message string) *ServiceError {
	return newError(CodeServiceUnavailable, http.StatusServiceUnavailable, message, nil)
}

// UpstreamTimeout signals a proxied request that exceeded its deadline.
func UpstreamTimeout(message string) *ServiceError {
	return newError(CodeUpstreamTimeout, http.StatusGatewayTimeout, message, nil)
}

// BadGateway signals an unreachable or misbehaving upstream.
func BadGateway(message string, err error) *ServiceError {
	return newError(CodeBadGateway, http.StatusBadGateway, message, err)
}

// Internal signals an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// HTTPStatus returns the status code for an error, defaulting to 500.
func HTTPStatus(err error) int {
	if svcErr := GetServiceError(err); svcErr != nil {
		return svcErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
