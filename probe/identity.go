package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/toolwatch/target"
)

// IdentityCheckerConfig configures the identity-provider checker.
type IdentityCheckerConfig struct {
	// Client is the HTTP client used for probes.
	Client *http.Client

	// NearExpiry is how close to expiry an issued token may be before
	// the provider is considered degraded. Default: 5m
	NearExpiry time.Duration
}

// IdentityChecker probes an identity provider's token endpoint and
// inspects the token it issues. A provider that answers but issues
// unparseable or already-expired tokens is unhealthy even though its
// transport looks fine; tokens expiring imminently mark it degraded.
//
// The token is parsed without signature verification: this is an
// issuance probe, not an authentication path.
type IdentityChecker struct {
	client     *http.Client
	nearExpiry time.Duration
}

// NewIdentityChecker creates an identity-provider checker.
func NewIdentityChecker(config ...IdentityCheckerConfig) *IdentityChecker {
	cfg := IdentityCheckerConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.NearExpiry <= 0 {
		cfg.NearExpiry = 5 * time.Minute
	}
	return &IdentityChecker{client: cfg.Client, nearExpiry: cfg.NearExpiry}
}

// Name returns "identity".
func (c *IdentityChecker) Name() string {
	return "identity"
}

// Check probes the token endpoint and inspects the issued token.
func (c *IdentityChecker) Check(ctx context.Context, t *target.Target) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, t.Probe.Method, t.Probe.Endpoint, nil)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "token request failed", classified).
			WithDetails(map[string]any{"error": classified.Error()})
	}
	for k, v := range t.Probe.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "token request failed", classified).
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
		return Unhealthy(t.ID, "token body unreadable", classified).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": classified.Error()})
	}

	token, perr := extractToken(body)
	if perr != nil {
		return Unhealthy(t.ID, "no token issued", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": perr.Error()})
	}

	return c.inspect(t, token, elapsed)
}

func extractToken(body []byte) (string, error) {
	var payload struct {
		AccessToken string `json:"access_token"`
		Token       string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", protocolError("token payload not JSON")
	}
	if payload.AccessToken != "" {
		return payload.AccessToken, nil
	}
	if payload.Token != "" {
		return payload.Token, nil
	}
	return "", protocolError("token payload missing access_token")
}

func (c *IdentityChecker) inspect(t *target.Target, raw string, elapsed time.Duration) Result {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		perr := protocolError("issued token unparseable: %v", err)
		return Unhealthy(t.ID, "issued token unparseable", perr).
			WithResponseTime(elapsed).
			WithDetails(map[string]any{"error": perr.Error()})
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// Tokens without exp are accepted; the provider issued something
		// parseable, which is what this probe establishes.
		return Healthy(t.ID, "token issued").WithResponseTime(elapsed)
	}

	remaining := time.Until(exp.Time)
	details := map[string]any{"token_expires_in": remaining.String()}
	metrics := map[string]float64{"token_ttl_seconds": remaining.Seconds()}

	switch {
	case remaining <= 0:
		perr := protocolError("issued token already expired")
		return Unhealthy(t.ID, "issued token expired", perr).
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	case remaining < c.nearExpiry:
		return Degraded(t.ID, "issued token near expiry").
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	default:
		return Healthy(t.ID, "token issued").
			WithResponseTime(elapsed).WithMetrics(metrics).WithDetails(details)
	}
}
