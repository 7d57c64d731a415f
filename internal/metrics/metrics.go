// Package metrics exposes the Prometheus collectors shared by the platform
// services.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "intelligence",
			Subsystem: "http",
			Name:      "requests_active",
			Help:      "Current number of in-flight HTTP requests.",
		},
		[]string{"method"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intelligence",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intelligence",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "endpoint"},
	)

	proxyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intelligence",
			Subsystem: "gateway",
			Name:      "proxied_requests_total",
			Help:      "Total number of requests forwarded to upstream services.",
		},
		[]string{"route", "status"},
	)

	rateLimitDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intelligence",
			Subsystem: "gateway",
			Name:      "rate_limit_drops_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"endpoint"},
	)

	serviceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "intelligence",
			Name:      "service_health",
			Help:      "Upstream service health (1=healthy, 0=unhealthy).",
		},
		[]string{"service"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		proxyRequests,
		rateLimitDrops,
		serviceHealth,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)

		httpInFlight.WithLabelValues(method).Inc()
		defer httpInFlight.WithLabelValues(method).Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		endpoint := NormalizeEndpoint(r.URL.Path)

		httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	})
}

// RecordProxiedRequest records a request forwarded to an upstream route.
func RecordProxiedRequest(route string, status int) {
	proxyRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// RecordRateLimitDrop records a request rejected by the rate limiter.
func RecordRateLimitDrop(path string) {
	rateLimitDrops.WithLabelValues(NormalizeEndpoint(path)).Inc()
}

// SetServiceHealth updates the health gauge for an upstream service.
func SetServiceHealth(service string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	serviceHealth.WithLabelValues(service).Set(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// NormalizeEndpoint collapses identifier-looking path segments to :id so the
// endpoint label cardinality stays bounded.
func NormalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if isIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if len(normalized) > 100 {
		normalized = normalized[:100] + "..."
	}
	return normalized
}

func isIdentifier(segment string) bool {
	digits := true
	for _, c := range segment {
		if c < '0' || c > '9' {
			digits = false
			break
		}
	}
	if digits && segment != "" {
		return true
	}
	// UUID-ish: long and hyphenated
	return len(segment) > 20 && strings.Contains(segment, "-")
}
