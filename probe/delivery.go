package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolwatch/target"
)

// DeliveryStats supplies aggregate webhook delivery counts for a target
// over a trailing window. It is implemented by the webhook-ingestion
// collaborator; only aggregate counts cross this boundary, never
// individual deliveries.
type DeliveryStats interface {
	// WindowCounts returns (successful, total) deliveries for the target
	// within the trailing window ending now.
	WindowCounts(ctx context.Context, targetID string, window time.Duration) (successful, total int64, err error)
}

// DeliveryCheckerConfig configures the delivery-ratio checker.
type DeliveryCheckerConfig struct {
	// Stats supplies the aggregate delivery counts. Required.
	Stats DeliveryStats

	// Window is the trailing window for the ratio. Default: 24h
	Window time.Duration

	// HealthyAbove is the percentage the ratio must strictly exceed to
	// be healthy. Default: 90
	HealthyAbove float64

	// DegradedFloor is the percentage at or above which a non-healthy
	// ratio is degraded rather than unhealthy. Default: 75
	DegradedFloor float64

	// CacheTTL is how long fetched counts are reused before asking the
	// collaborator again. Default: 30s
	CacheTTL time.Duration
}

// DeliveryChecker classifies a tool integration by its rolling webhook
// delivery success ratio, computed as successful/total*100 over the
// trailing window. The target is healthy only when the ratio is strictly
// greater than HealthyAbove; a ratio of exactly 90% is degraded.
//
// Concurrent probes coalesce their stats lookups through a singleflight
// group, and counts are cached briefly so the collaborator is not hit on
// every tick.
type DeliveryChecker struct {
	stats         DeliveryStats
	window        time.Duration
	healthyAbove  float64
	degradedFloor float64
	cacheTTL      time.Duration

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]deliveryCounts
}

type deliveryCounts struct {
	successful int64
	total      int64
	expiresAt  time.Time
}

// NewDeliveryChecker creates a delivery-ratio checker.
func NewDeliveryChecker(cfg DeliveryCheckerConfig) *DeliveryChecker {
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.HealthyAbove <= 0 {
		cfg.HealthyAbove = 90
	}
	if cfg.DegradedFloor <= 0 || cfg.DegradedFloor >= cfg.HealthyAbove {
		cfg.DegradedFloor = 75
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &DeliveryChecker{
		stats:         cfg.Stats,
		window:        cfg.Window,
		healthyAbove:  cfg.HealthyAbove,
		degradedFloor: cfg.DegradedFloor,
		cacheTTL:      cfg.CacheTTL,
		cache:         make(map[string]deliveryCounts),
	}
}

// Name returns "delivery".
func (c *DeliveryChecker) Name() string {
	return "delivery"
}

// Check classifies the target by its delivery success ratio.
func (c *DeliveryChecker) Check(ctx context.Context, t *target.Target) Result {
	successful, total, err := c.counts(ctx, t.ID)
	if err != nil {
		classified := classifyTransport(err)
		return Unhealthy(t.ID, "delivery stats unavailable", classified).
			WithDetails(map[string]any{"error": classified.Error()})
	}

	if total == 0 {
		// Nothing delivered in the window; nothing to judge.
		return Healthy(t.ID, "no deliveries in window").
			WithDetails(map[string]any{"window": c.window.String()})
	}

	ratio := float64(successful) / float64(total) * 100
	metrics := map[string]float64{"delivery_success_ratio": ratio}
	details := map[string]any{
		"successful": successful,
		"total":      total,
		"ratio_pct":  ratio,
		"window":     c.window.String(),
	}
	summary := fmt.Sprintf("delivery ratio %.1f%% (%d/%d)", ratio, successful, total)

	switch {
	case ratio > c.healthyAbove:
		return Healthy(t.ID, summary).WithMetrics(metrics).WithDetails(details)
	case ratio >= c.degradedFloor:
		return Degraded(t.ID, summary).WithMetrics(metrics).WithDetails(details)
	default:
		return Unhealthy(t.ID, summary, protocolError("delivery ratio %.1f%%", ratio)).
			WithMetrics(metrics).WithDetails(details)
	}
}

// counts returns cached window counts, fetching through singleflight on
// expiry so concurrent ticks share one collaborator call.
func (c *DeliveryChecker) counts(ctx context.Context, targetID string) (int64, int64, error) {
	c.mu.Lock()
	entry, ok := c.cache[targetID]
	c.mu.Unlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.successful, entry.total, nil
	}

	v, err, _ := c.group.Do(targetID, func() (any, error) {
		successful, total, err := c.stats.WindowCounts(ctx, targetID, c.window)
		if err != nil {
			return nil, err
		}
		fresh := deliveryCounts{
			successful: successful,
			total:      total,
			expiresAt:  time.Now().Add(c.cacheTTL),
		}
		c.mu.Lock()
		c.cache[targetID] = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return 0, 0, err
	}
	counts := v.(deliveryCounts)
	return counts.successful, counts.total, nil
}
