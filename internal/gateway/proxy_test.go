package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
)

// newProxyFixture proxies /reports to a test upstream. Background health
// probes hit /health and are answered before reaching the handler under
// test, so probe traffic never disturbs captured request state.
func newProxyFixture(t *testing.T, upstream http.Handler) (*Proxy, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		upstream.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	table, err := NewRouteTable([]Route{{Prefix: "/reports", URL: server.URL}})
	if err != nil {
		t.Fatalf("NewRouteTable() error: %v", err)
	}
	health := NewHealthChecker(table, logging.NewNop())
	proxy := NewProxy(table, health, "proxy-secret", 2*time.Second, logging.NewNop())
	return proxy, server
}

func TestProxyForwardsRequestAndResponse(t *testing.T) {
	var mu sync.Mutex
	var gotHeaders http.Header
	var gotPath string
	proxy, _ := newProxyFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotHeaders = r.Header.Clone()
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		mu.Unlock()
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("brewed"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports/123?page=2", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Connection", "keep-alive")
	rec := httptest.NewRecorder()

	proxy.ServeHTTP(rec, req)

	mu.Lock()
	defer mu.Unlock()

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "brewed" {
		t.Errorf("body = %q", body)
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream header not relayed")
	}
	if gotPath != "/reports/123?page=2" {
		t.Errorf("upstream path = %q", gotPath)
	}
	if gotHeaders.Get("Authorization") != "Bearer tok" {
		t.Error("authorization header not forwarded")
	}
	if gotHeaders.Get("Connection") != "" {
		t.Error("hop header forwarded")
	}
	if gotHeaders.Get(httputil.GatewaySecretHeader) != "proxy-secret" {
		t.Error("gateway secret not attached")
	}
	if gotHeaders.Get("X-Forwarded-For") != "192.0.2.10" {
		t.Errorf("X-Forwarded-For = %q", gotHeaders.Get("X-Forwarded-For"))
	}
}

func TestProxyAppendsForwardedFor(t *testing.T) {
	var mu sync.Mutex
	var got string
	proxy, _ := newProxyFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Get("X-Forwarded-For")
		mu.Unlock()
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports/1", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	proxy.ServeHTTP(httptest.NewRecorder(), req)

	mu.Lock()
	defer mu.Unlock()
	if got != "198.51.100.7, 192.0.2.10" {
		t.Errorf("X-Forwarded-For = %q", got)
	}
}

func TestProxyUnknownRoute404(t *testing.T) {
	proxy, _ := newProxyFixture(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/nothing/here", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code == "" {
		t.Error("missing error code in body")
	}
}

func TestProxyDownUpstream502(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	table, err := NewRouteTable([]Route{{Prefix: "/reports", URL: server.URL}})
	if err != nil {
		t.Fatalf("NewRouteTable() error: %v", err)
	}
	server.Close() // nothing listens anymore

	health := NewHealthChecker(table, logging.NewNop())
	proxy := NewProxy(table, health, "", time.Second, logging.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/reports/1", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestProxySlowUpstream504(t *testing.T) {
	proxy, _ := newProxyFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
	}))

	req := httptest.NewRequest(http.MethodGet, "/reports/slow", nil)
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}
