package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	svcerrors "github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/metrics"
)

// hopHeaders are not forwarded to upstream services.
var hopHeaders = map[string]bool{
	"Host":           true,
	"Connection":     true,
	"Content-Length": true,
}

// Proxy forwards requests to upstream services according to the route table.
type Proxy struct {
	table         *RouteTable
	health        *HealthChecker
	client        *http.Client
	gatewaySecret string
	logger        *logging.Logger
}

// NewProxy creates a proxy over the route table.
func NewProxy(table *RouteTable, health *HealthChecker, gatewaySecret string, timeout time.Duration, logger *logging.Logger) *Proxy {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Proxy{
		table:  table,
		health: health,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		gatewaySecret: gatewaySecret,
		logger:        logger,
	}
}

// ServeHTTP forwards the request to the resolved upstream and relays the
// response unmodified.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := p.table.Resolve(r.URL.Path)
	if !ok {
		svcErr := svcerrors.NotFound("No service configured for path: " + r.URL.Path)
		httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, nil)
		return
	}

	// Kick a background health refresh when the route state is stale.
	p.health.Observe(route)

	target := route.URL + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	upstreamReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		p.respondProxyError(w, r, route, svcerrors.Internal("An internal error occurred while processing your request.", err))
		return
	}
	p.forwardHeaders(r, upstreamReq)

	resp, err := p.client.Do(upstreamReq)
	if err != nil {
		p.respondProxyError(w, r, route, classifyUpstreamError(err))
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)

	metrics.RecordProxiedRequest(route.ServiceName(), resp.StatusCode)
	p.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
		"route":  route.Prefix,
		"target": target,
		"status": resp.StatusCode,
	}).Infof("proxied %s %s", r.Method, r.URL.Path)
}

// forwardHeaders copies request headers to the upstream request, drops hop
// headers, extends X-Forwarded-For and attaches the gateway secret.
func (p *Proxy) forwardHeaders(r *http.Request, upstream *http.Request) {
	for name, values := range r.Header {
		if hopHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			upstream.Header.Add(name, v)
		}
	}

	clientIP := remoteIP(r)
	if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
		upstream.Header.Set("X-Forwarded-For", prior+", "+clientIP)
	} else {
		upstream.Header.Set("X-Forwarded-For", clientIP)
	}

	if p.gatewaySecret != "" {
		upstream.Header.Set(httputil.GatewaySecretHeader, p.gatewaySecret)
	}
	if traceID := logging.GetTraceID(r.Context()); traceID != "" {
		upstream.Header.Set(httputil.TraceIDHeader, traceID)
	}
}

func (p *Proxy) respondProxyError(w http.ResponseWriter, r *http.Request, route Route, svcErr *svcerrors.ServiceError) {
	p.logger.WithContext(r.Context()).WithError(svcErr).WithFields(map[string]interface{}{
		"route": route.Prefix,
		"path":  r.URL.Path,
	}).Error("proxy request failed")

	metrics.RecordProxiedRequest(route.ServiceName(), svcErr.HTTPStatus)
	httputil.WriteErrorResponse(w, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, nil)
}

// classifyUpstreamError maps client errors to gateway status codes: timeouts
// become 504, connection failures 502.
func classifyUpstreamError(err error) *svcerrors.ServiceError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return svcerrors.UpstreamTimeout("Service timeout. Please try again later.")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return svcerrors.UpstreamTimeout("Service timeout. Please try again later.")
	}
	return svcerrors.BadGateway("Unable to reach the service", err)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "unknown"
	}
	return strings.TrimSpace(host)
}
