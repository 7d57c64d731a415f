package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/metrics"
)

// healthTTL is how long a probe result is trusted before a route is
// re-checked on demand.
const healthTTL = 60 * time.Second

// probeTimeout bounds a single upstream health probe.
const probeTimeout = 5 * time.Second

// RouteHealth is the recorded health state of one upstream route.
type RouteHealth struct {
	Healthy     bool      `json:"is_healthy"`
	LastChecked time.Time `json:"last_checked"`
	Error       string    `json:"error,omitempty"`
}

// HealthChecker probes upstream services and caches their state. Probe
// results never block proxying: the proxy consults the last known state and
// stale entries are refreshed in the background.
type HealthChecker struct {
	table  *RouteTable
	client *http.Client
	logger *logging.Logger

	mu    sync.RWMutex
	state map[string]RouteHealth

	inflight sync.Map // prefix -> struct{}, dedupes concurrent probes
	cron     *cron.Cron
}

// NewHealthChecker creates a checker over the route table.
func NewHealthChecker(table *RouteTable, logger *logging.Logger) *HealthChecker {
	return &HealthChecker{
		table:  table,
		client: &http.Client{Timeout: probeTimeout},
		logger: logger,
		state:  make(map[string]RouteHealth),
	}
}

// Start begins the periodic health sweep. The schedule is a cron spec such as
// "@every 30s".
func (c *HealthChecker) Start(schedule string) error {
	c.cron = cron.New()
	if _, err := c.cron.AddFunc(schedule, func() {
		c.CheckAll(context.Background())
	}); err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the periodic sweep.
func (c *HealthChecker) Stop() {
	if c.cron != nil {
		c.cron.Stop()
	}
}

// State returns the recorded health for a route prefix.
func (c *HealthChecker) State(prefix string) (RouteHealth, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.state[prefix]
	return h, ok
}

// Snapshot returns the recorded health for all routes.
func (c *HealthChecker) Snapshot() map[string]RouteHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]RouteHealth, len(c.state))
	for k, v := range c.state {
		out[k] = v
	}
	return out
}

// Observe notes that a route was used and refreshes its state in the
// background when stale or unhealthy.
func (c *HealthChecker) Observe(route Route) {
	h, ok := c.State(route.Prefix)
	if ok && h.Healthy && time.Since(h.LastChecked) <= healthTTL {
		return
	}
	// Refresh without blocking the request path.
	if _, loaded := c.inflight.LoadOrStore(route.Prefix, struct{}{}); loaded {
		return
	}
	go func() {
		defer c.inflight.Delete(route.Prefix)
		c.Check(context.Background(), route)
	}()
}

// Check probes one route and records the result.
func (c *HealthChecker) Check(ctx context.Context, route Route) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	healthy := false
	var probeErr string

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, route.URL+route.HealthPath, nil)
	if err != nil {
		probeErr = err.Error()
	} else {
		resp, err := c.client.Do(req)
		if err != nil {
			probeErr = err.Error()
		} else {
			resp.Body.Close()
			healthy = resp.StatusCode == http.StatusOK
		}
	}

	c.mu.Lock()
	c.state[route.Prefix] = RouteHealth{
		Healthy:     healthy,
		LastChecked: time.Now(),
		Error:       probeErr,
	}
	c.mu.Unlock()

	metrics.SetServiceHealth(route.ServiceName(), healthy)

	if !healthy {
		c.logger.WithFields(map[string]interface{}{
			"route": route.Prefix,
			"url":   route.URL,
			"error": probeErr,
		}).Warn("upstream health check failed")
	}

	return healthy
}

// CheckAll probes every route concurrently and returns the state snapshot.
func (c *HealthChecker) CheckAll(ctx context.Context) map[string]RouteHealth {
	routes := c.table.Routes()

	var wg sync.WaitGroup
	for _, route := range routes {
		wg.Add(1)
		go func(rt Route) {
			defer wg.Done()
			c.Check(ctx, rt)
		}(route)
	}
	wg.Wait()

	return c.Snapshot()
}
