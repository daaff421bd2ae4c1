package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/toolwatch/target"
)

// maxBodyBytes bounds how much of a health response body is read.
const maxBodyBytes = 64 * 1024

// HTTPCheckerConfig configures the generic HTTP checker.
type HTTPCheckerConfig struct {
	// Client is the HTTP client used for probes.
	// Default: http.DefaultClient semantics with no extra timeout; the
	// probe context carries the deadline.
	Client *http.Client
}

// HTTPChecker is the default checker: one bounded-time request to the
// target's health endpoint. If the body exposes a status field, the
// verdict refines on its value. Critical targets additionally get a
// readiness request after a healthy primary result; readiness failure
// downgrades to degraded, never to unhealthy on its own.
type HTTPChecker struct {
	client *http.Client
}

// NewHTTPChecker creates a generic HTTP checker.
func NewHTTPChecker(config ...HTTPCheckerConfig) *HTTPChecker {
	cfg := HTTPCheckerConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	return &HTTPChecker{client: cfg.Client}
}

// Name returns "http".
func (c *HTTPChecker) Name() string {
	return "http"
}

// Check probes the target's health endpoint.
func (c *HTTPChecker) Check(ctx context.Context, t *target.Target) Result {
	start := time.Now()

	status, body, err := c.request(ctx, t, t.Probe.Method, t.Probe.Endpoint)
	elapsed := time.Since(start)

	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "health request failed", classified).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": classified.Error()})
	}

	if !t.ExpectsStatus(status) {
		perr := protocolError("unexpected status %d", status)
		return Unhealthy(t.ID, "unexpected response status", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"status_code": status})
	}

	result := c.interpretBody(t, body, status)
	result.ResponseTime = elapsed

	// Secondary readiness check for critical targets. Only a healthy
	// primary verdict is at stake, and readiness trouble downgrades it.
	if t.Critical && result.Status == StatusHealthy && t.Probe.ReadinessEndpoint != "" {
		if rerr := c.ready(ctx, t); rerr != nil {
			result = Degraded(t.ID, "readiness check failed").
				WithResponseTime(elapsed).
				WithDetails(map[string]any{"readiness_error": rerr.Error()})
		}
	}

	return result
}

func (c *HTTPChecker) request(ctx context.Context, t *target.Target, method, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range t.Probe.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// interpretBody refines the verdict from a JSON status field, when present.
func (c *HTTPChecker) interpretBody(t *target.Target, body []byte, statusCode int) Result {
	var payload map[string]any
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		// No parseable body; the transport outcome stands.
		return Healthy(t.ID, "endpoint reachable")
	}

	field, ok := payload["status"].(string)
	if !ok {
		return Healthy(t.ID, "endpoint reachable").
			WithDetails(map[string]any{"body": payload})
	}

	switch strings.ToLower(field) {
	case "ok", "ready", "healthy", "up":
		return Healthy(t.ID, "reported "+field).
			WithDetails(map[string]any{"reported_status": field})
	case "degraded":
		return Degraded(t.ID, "reported degraded").
			WithDetails(map[string]any{"reported_status": field})
	default:
		perr := protocolError("reported status %q", field)
		return Unhealthy(t.ID, "reported "+field, perr).
			WithDetails(map[string]any{"reported_status": field, "status_code": statusCode})
	}
}

func (c *HTTPChecker) ready(ctx context.Context, t *target.Target) error {
	status, _, err := c.request(ctx, t, http.MethodGet, t.Probe.ReadinessEndpoint)
	if err != nil {
		return classifyTransport(err)
	}
	if status < 200 || status >= 300 {
		return protocolError("readiness status %d", status)
	}
	return nil
}
