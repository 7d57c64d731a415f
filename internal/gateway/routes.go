// Package gateway implements the API gateway: prefix-based request routing to
// upstream services, upstream health tracking and the gateway's own endpoints.
package gateway

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/intelligence-service/platform/internal/config"
)

// Route maps a path prefix to an upstream service.
type Route struct {
	Prefix     string `yaml:"prefix" json:"prefix"`
	URL        string `yaml:"url" json:"service_url"`
	HealthPath string `yaml:"health" json:"health_endpoint"`
}

// RouteTable resolves request paths to upstream routes.
type RouteTable struct {
	routes []Route
}

// NewRouteTable builds a table from the given routes. Longer prefixes win
// when routes overlap.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	for i := range routes {
		if routes[i].Prefix == "" || !strings.HasPrefix(routes[i].Prefix, "/") {
			return nil, fmt.Errorf("route %d: prefix must start with /", i)
		}
		if routes[i].URL == "" {
			return nil, fmt.Errorf("route %s: url is required", routes[i].Prefix)
		}
		if routes[i].HealthPath == "" {
			routes[i].HealthPath = "/health"
		}
		routes[i].URL = strings.TrimRight(routes[i].URL, "/")
	}

	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &RouteTable{routes: sorted}, nil
}

// Resolve returns the route for a request path, or false when no route
// matches.
func (t *RouteTable) Resolve(path string) (Route, bool) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for _, route := range t.routes {
		if path == route.Prefix || strings.HasPrefix(path, route.Prefix+"/") {
			return route, true
		}
	}
	return Route{}, false
}

// Routes returns all configured routes.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// LoadRoutes builds the route table from the YAML file when configured,
// otherwise from the per-service URL settings.
func LoadRoutes(cfg *config.GatewayConfig) (*RouteTable, error) {
	if cfg.RoutesFile != "" {
		return loadRoutesFile(cfg.RoutesFile)
	}
	return NewRouteTable(defaultRoutes(cfg))
}

func loadRoutesFile(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	var file struct {
		Routes []Route `yaml:"routes"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("routes file %s declares no routes", path)
	}
	return NewRouteTable(file.Routes)
}

func defaultRoutes(cfg *config.GatewayConfig) []Route {
	return []Route{
		{Prefix: "/auth", URL: cfg.AuthServiceURL},
		{Prefix: "/reports", URL: cfg.ReportsURL},
		{Prefix: "/alerts", URL: cfg.AlertsURL},
		{Prefix: "/map", URL: cfg.MapURL},
		{Prefix: "/ai", URL: cfg.AIURL},
		{Prefix: "/audit", URL: cfg.AuditURL},
	}
}

// ServiceName derives a metrics-friendly name from a route prefix.
func (r Route) ServiceName() string {
	return strings.TrimPrefix(r.Prefix, "/")
}
