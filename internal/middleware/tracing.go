// Package middleware provides HTTP middleware shared by the platform services.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/intelligence-service/platform/internal/logging"
)

// TracingMiddleware assigns a trace ID to every request, logs it on
// completion and reports the handling time in the X-Process-Time header.
type TracingMiddleware struct {
	logger *logging.Logger
}

// NewTracingMiddleware creates a new tracing middleware.
func NewTracingMiddleware(logger *logging.Logger) *TracingMiddleware {
	return &TracingMiddleware{logger: logger}
}

// Handler returns the tracing middleware handler.
func (m *TracingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = logging.NewTraceID()
		}

		ctx := logging.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK, start: start}

		next.ServeHTTP(rw, r.WithContext(ctx))

		m.logger.LogRequest(ctx, r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code and to
// stamp X-Process-Time before headers flush.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	start      time.Time
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		if !rw.start.IsZero() {
			rw.Header().Set("X-Process-Time", fmt.Sprintf("%.4f", time.Since(rw.start).Seconds()))
		}
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
