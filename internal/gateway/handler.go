package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
)

// Version is the gateway version reported on the root and health endpoints.
const Version = "1.0.0"

// Handler bundles the gateway's own endpoints and the proxy catch-all.
type Handler struct {
	table  *RouteTable
	health *HealthChecker
	proxy  *Proxy
	logger *logging.Logger
}

// NewHandler creates the gateway handler.
func NewHandler(table *RouteTable, health *HealthChecker, proxy *Proxy, logger *logging.Logger) *Handler {
	return &Handler{table: table, health: health, proxy: proxy, logger: logger}
}

// Router builds the gateway router: internal routes first, everything else is
// proxied.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	r.HandleFunc("/health", h.healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/routes", h.listRoutes).Methods(http.MethodGet)
	r.HandleFunc("/services/health", h.servicesHealth).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(h.proxy)
	return r
}

func (h *Handler) root(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "Intelligence-Service API Gateway",
		"version": Version,
		"status":  "running",
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api-gateway",
		"version": Version,
	})
}

func (h *Handler) listRoutes(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"routes":          h.table.Routes(),
		"internal_routes": []string{"/health", "/routes", "/services/health"},
	})
}

// serviceHealthEntry is one upstream's state in the aggregate health report.
type serviceHealthEntry struct {
	URL         string    `json:"url"`
	Healthy     bool      `json:"is_healthy"`
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
}

func (h *Handler) servicesHealth(w http.ResponseWriter, r *http.Request) {
	state := h.health.CheckAll(r.Context())

	services := make(map[string]serviceHealthEntry, len(state))
	for _, route := range h.table.Routes() {
		entry := serviceHealthEntry{URL: route.URL}
		if s, ok := state[route.Prefix]; ok {
			entry.Healthy = s.Healthy
			entry.LastChecked = s.LastChecked
			entry.Error = s.Error
		}
		services[route.Prefix] = entry
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"gateway_status": "healthy",
		"services":       services,
	})
}
