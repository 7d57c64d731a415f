package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/ratelimit"
)

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2, time.Minute)
	m := NewRateLimitMiddleware(limiter, 2, "minute", logging.NewNop())

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := serve(); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := serve()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("missing X-RateLimit-Remaining header")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("missing X-RateLimit-Reset header")
	}
}

func TestRateLimitMiddlewarePerClient(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, time.Minute)
	m := NewRateLimitMiddleware(limiter, 1, "minute", logging.NewNop())

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve("192.0.2.1:1234"); code != http.StatusOK {
		t.Fatalf("first client status = %d", code)
	}
	if code := serve("192.0.2.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("first client second request status = %d, want 429", code)
	}
	// A different client has its own budget.
	if code := serve("192.0.2.2:1234"); code != http.StatusOK {
		t.Fatalf("second client status = %d, want 200", code)
	}
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	if got := ClientID(req); got != "192.0.2.1" {
		t.Errorf("ClientID() = %q, want remote IP", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 192.0.2.1")
	if got := ClientID(req); got != "198.51.100.7" {
		t.Errorf("ClientID() = %q, want first forwarded IP", got)
	}

	req.Header.Set("Authorization", "Bearer token-abc")
	if got := ClientID(req); got != "Bearer token-abc" {
		t.Errorf("ClientID() = %q, want bearer token", got)
	}
}
