package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonwraymond/toolwatch/target"
)

// RateLimitCheckerConfig configures the rate-limit checker.
type RateLimitCheckerConfig struct {
	// Client is the HTTP client used for probes.
	Client *http.Client

	// WarnFraction is the remaining-budget fraction below which the
	// target is degraded. Default: 0.2
	WarnFraction float64
}

// RateLimitChecker interprets a tool integration's remaining rate-limit
// budget. Healthy above the warn fraction, degraded below it, unhealthy
// when the budget is exhausted or the endpoint is unreachable.
//
// The budget is read from the conventional X-RateLimit-Remaining and
// X-RateLimit-Limit headers, falling back to "remaining"/"limit" fields
// in a JSON body.
type RateLimitChecker struct {
	client       *http.Client
	warnFraction float64
}

// NewRateLimitChecker creates a rate-limit checker.
func NewRateLimitChecker(config ...RateLimitCheckerConfig) *RateLimitChecker {
	cfg := RateLimitCheckerConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.WarnFraction <= 0 || cfg.WarnFraction >= 1 {
		cfg.WarnFraction = 0.2
	}
	return &RateLimitChecker{client: cfg.Client, warnFraction: cfg.WarnFraction}
}

// Name returns "ratelimit".
func (c *RateLimitChecker) Name() string {
	return "ratelimit"
}

// Check probes the target and classifies its remaining rate-limit budget.
func (c *RateLimitChecker) Check(ctx context.Context, t *target.Target) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, t.Probe.Method, t.Probe.Endpoint, nil)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "rate-limit request failed", classified).
			WithDetails(map[string]any{"error": classified.Error()})
	}
	for k, v := range t.Probe.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "rate-limit request failed", classified).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": classified.Error()})
	}
	defer resp.Body.Close()

	remaining, limit, perr := c.budget(resp)
	if perr != nil {
		return Unhealthy(t.ID, "rate-limit budget unreadable", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": perr.Error()})
	}

	fraction := 1.0
	if limit > 0 {
		fraction = float64(remaining) / float64(limit)
	}
	metrics := map[string]float64{
		"rate_limit_remaining": float64(remaining),
		"rate_limit_fraction":  fraction,
	}
	details := map[string]any{"remaining": remaining, "limit": limit}

	switch {
	case remaining <= 0:
		return Unhealthy(t.ID, "rate limit exhausted", protocolError("no remaining budget")).
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	case fraction < c.warnFraction:
		return Degraded(t.ID, "rate-limit budget low").
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	default:
		return Healthy(t.ID, "rate-limit budget ok").
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	}
}

func (c *RateLimitChecker) budget(resp *http.Response) (remaining, limit int64, err error) {
	remHeader := resp.Header.Get("X-RateLimit-Remaining")
	limHeader := resp.Header.Get("X-RateLimit-Limit")
	if remHeader != "" && limHeader != "" {
		remaining, err = strconv.ParseInt(remHeader, 10, 64)
		if err != nil {
			return 0, 0, protocolError("bad X-RateLimit-Remaining %q", remHeader)
		}
		limit, err = strconv.ParseInt(limHeader, 10, 64)
		if err != nil {
			return 0, 0, protocolError("bad X-RateLimit-Limit %q", limHeader)
		}
		return remaining, limit, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, 0, classifyTransport(err)
	}
	var payload struct {
		Remaining *int64 `json:"remaining"`
		Limit     *int64 `json:"limit"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Remaining == nil || payload.Limit == nil {
		return 0, 0, protocolError("no rate-limit headers or body fields")
	}
	return *payload.Remaining, *payload.Limit, nil
}
