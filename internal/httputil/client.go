// Package httputil provides HTTP helpers for service-to-service communication
// inside the platform.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewaySecretHeader carries the shared secret that marks a request as
// having passed through the API gateway.
const GatewaySecretHeader = "X-Gateway-Secret"

// TraceIDHeader propagates the request trace ID between services.
const TraceIDHeader = "X-Trace-ID"

// ServiceClient is a JSON HTTP client for calls between platform services.
// It attaches the gateway secret and retries transient upstream failures.
type ServiceClient struct {
	httpClient    *http.Client
	baseURL       string
	gatewaySecret string
	maxRetries    int
}

// ServiceClientConfig configures the service client.
type ServiceClientConfig struct {
	BaseURL       string
	GatewaySecret string
	Timeout       time.Duration
	MaxRetries    int
}

// NewServiceClient creates a new service client.
func NewServiceClient(cfg ServiceClientConfig) *ServiceClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}

	return &ServiceClient{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       cfg.BaseURL,
		gatewaySecret: cfg.GatewaySecret,
		maxRetries:    maxRetries,
	}
}

// Do executes an HTTP request against the service.
func (c *ServiceClient) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	return c.doWithRetry(ctx, method, path, body, nil, 0)
}

// DoWithHeaders executes an HTTP request with extra headers attached.
func (c *ServiceClient) DoWithHeaders(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	return c.doWithRetry(ctx, method, path, body, headers, 0)
}

func (c *ServiceClient) doWithRetry(ctx context.Context, method, path string, body interface{}, headers map[string]string, attempt int) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.gatewaySecret != "" {
		req.Header.Set(GatewaySecretHeader, c.gatewaySecret)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attempt < c.maxRetries && ctx.Err() == nil {
			return c.doWithRetry(ctx, method, path, body, headers, attempt+1)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	// Retry transient upstream failures
	if resp.StatusCode >= 502 && resp.StatusCode <= 504 && attempt < c.maxRetries {
		resp.Body.Close()
		return c.doWithRetry(ctx, method, path, body, headers, attempt+1)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *ServiceClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with JSON body.
func (c *ServiceClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// DecodeResponse decodes a JSON response into the target struct. Responses
// with status >= 400 are returned as errors with a truncated body excerpt.
func DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, err := ReadAllWithLimit(resp.Body, 64<<10)
		if err != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		excerpt := string(body)
		if truncated {
			excerpt += "..."
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, excerpt)
	}

	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ReadAllWithLimit reads up to limit bytes, reporting whether the body was
// truncated.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}
