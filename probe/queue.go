package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/jonwraymond/toolwatch/target"
)

// QueueDepthCheckerConfig configures the queue-depth checker.
type QueueDepthCheckerConfig struct {
	// Client is the HTTP client used for probes.
	Client *http.Client

	// Field is the JSON field carrying the depth. Default: "depth"
	Field string

	// DegradedDepth is the depth at or above which the target is
	// degraded. Default: 100
	DegradedDepth float64

	// UnhealthyDepth is the depth at or above which the target is
	// unhealthy. Default: 500
	UnhealthyDepth float64
}

// QueueDepthChecker interprets a build or delivery queue's backlog.
// A deep queue means the integration is falling behind even though its
// endpoint answers.
type QueueDepthChecker struct {
	client         *http.Client
	field          string
	degradedDepth  float64
	unhealthyDepth float64
}

// NewQueueDepthChecker creates a queue-depth checker.
func NewQueueDepthChecker(config ...QueueDepthCheckerConfig) *QueueDepthChecker {
	cfg := QueueDepthCheckerConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Field == "" {
		cfg.Field = "depth"
	}
	if cfg.DegradedDepth <= 0 {
		cfg.DegradedDepth = 100
	}
	if cfg.UnhealthyDepth <= cfg.DegradedDepth {
		cfg.UnhealthyDepth = 500
	}
	return &QueueDepthChecker{
		client:         cfg.Client,
		field:          cfg.Field,
		degradedDepth:  cfg.DegradedDepth,
		unhealthyDepth: cfg.UnhealthyDepth,
	}
}

// Name returns "queue".
func (c *QueueDepthChecker) Name() string {
	return "queue"
}

// Check probes the target and classifies its queue depth.
func (c *QueueDepthChecker) Check(ctx context.Context, t *target.Target) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, t.Probe.Method, t.Probe.Endpoint, nil)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "queue request failed", classified).
			WithDetails(map[string]any{"error": classified.Error()})
	}
	for k, v := range t.Probe.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "queue request failed", classified).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": classified.Error()})
	}
	defer resp.Body.Close()

	if !t.ExpectsStatus(resp.StatusCode) {
		perr := protocolError("unexpected status %d", resp.StatusCode)
		return Unhealthy(t.ID, "unexpected response status", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "queue body unreadable", classified).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": classified.Error()})
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		perr := protocolError("queue payload not JSON")
		return Unhealthy(t.ID, "queue payload unreadable", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": perr.Error()})
	}
	depth, ok := payload[c.field].(float64)
	if !ok {
		perr := protocolError("missing numeric field %q", c.field)
		return Unhealthy(t.ID, "queue depth missing", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": perr.Error()})
	}

	metrics := map[string]float64{"queue_depth": depth}
	details := map[string]any{"depth": depth}

	switch {
	case depth >= c.unhealthyDepth:
		return Unhealthy(t.ID, "queue backlog critical", protocolError("depth %.0f", depth)).
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	case depth >= c.degradedDepth:
		return Degraded(t.ID, "queue backlog elevated").
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	default:
		return Healthy(t.ID, "queue depth ok").
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	}
}
