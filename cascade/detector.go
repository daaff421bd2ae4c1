package cascade

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolwatch/observe"
	"github.com/jonwraymond/toolwatch/probe"
	"github.com/jonwraymond/toolwatch/target"
)

// DefaultResolveAfter is how many consecutive healthy results on the root
// cause close its open incident. It matches the breaker's default success
// threshold: by the time the incident resolves, traffic flows again.
const DefaultResolveAfter = 2

// DetectorConfig configures the cascade detector.
type DetectorConfig struct {
	// Graph is the static dependency graph. Required.
	Graph *target.Graph

	// Store persists incidents. Required.
	Store Store

	// ResolveAfter is the consecutive-healthy count that resolves an open
	// incident. Default: 2
	ResolveAfter int

	// Logger receives detection and resolution events. Default: no-op logger.
	Logger observe.Logger

	// now is injectable for tests.
	now func() time.Time
}

// Detector watches probe results for cascade failures. A cascade opens
// when a critical target goes unhealthy while critical edges lead to
// dependents; it resolves after the root cause is consecutively healthy.
//
// The detector only ever opens one incident per root cause: repeated
// unhealthy results refresh the open incident instead of duplicating it.
// Non-critical targets never open incidents, whatever their fan-out.
type Detector struct {
	graph        *target.Graph
	store        Store
	resolveAfter int
	logger       observe.Logger
	now          func() time.Time

	mu      sync.Mutex
	healthy map[string]int // consecutive healthy results per root cause
}

// NewDetector creates a detector.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if cfg.Graph == nil {
		return nil, ErrNilGraph
	}
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.ResolveAfter <= 0 {
		cfg.ResolveAfter = DefaultResolveAfter
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &Detector{
		graph:        cfg.Graph,
		store:        cfg.Store,
		resolveAfter: cfg.ResolveAfter,
		logger:       cfg.Logger,
		now:          cfg.now,
		healthy:      make(map[string]int),
	}, nil
}

// HandleResult feeds one probe outcome into cascade detection. It is
// called by the scheduler after every completed probe, with the target
// the result belongs to.
func (d *Detector) HandleResult(ctx context.Context, t *target.Target, result probe.Result) error {
	switch result.Status {
	case probe.StatusUnhealthy:
		d.resetStreak(t.ID)
		if !t.Critical {
			return nil
		}
		return d.escalate(ctx, t, result)
	case probe.StatusHealthy:
		if d.bumpStreak(t.ID) < d.resolveAfter {
			return nil
		}
		return d.resolve(ctx, t.ID)
	case probe.StatusDegraded:
		// The target answered, but a degraded run does not count toward
		// resolution.
		d.resetStreak(t.ID)
		return nil
	default:
		// Skipped ticks carry no signal either way.
		return nil
	}
}

// escalate opens or refreshes the incident for an unhealthy critical target.
func (d *Detector) escalate(ctx context.Context, t *target.Target, result probe.Result) error {
	affected := d.graph.CriticalDependents(t.ID)
	if len(affected) == 0 {
		return nil
	}

	now := d.now().UTC()
	incident, err := d.store.OpenByRootCause(ctx, t.ID)
	switch {
	case err == nil:
		incident.Affected = mergeAffected(incident.Affected, affected)
		incident.Severity = severityFor(t.Class, len(incident.Affected))
		incident.UserImpact = impactFor(t.Class, len(incident.Affected))
		incident.UpdatedAt = now
	case errors.Is(err, ErrNotFound):
		incident = Incident{
			ID:         uuid.New(),
			RootCause:  t.ID,
			Affected:   mergeAffected(nil, affected),
			Severity:   severityFor(t.Class, len(affected)),
			UserImpact: impactFor(t.Class, len(affected)),
			DetectedAt: now,
			StartedAt:  result.Timestamp,
			UpdatedAt:  now,
			Resolution: ResolutionOngoing,
		}
		d.logger.Warn(ctx, "cascade failure detected",
			observe.Field{Key: "root_cause", Value: t.ID},
			observe.Field{Key: "severity", Value: string(incident.Severity)},
			observe.Field{Key: "user_impact", Value: string(incident.UserImpact)},
			observe.Field{Key: "affected", Value: incident.Affected},
		)
	default:
		return err
	}

	return d.store.Upsert(ctx, incident)
}

// resolve closes the open incident for a recovered root cause, if any.
func (d *Detector) resolve(ctx context.Context, rootCause string) error {
	incident, err := d.store.OpenByRootCause(ctx, rootCause)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	incident.Resolution = ResolutionResolved
	incident.UpdatedAt = d.now().UTC()
	if err := d.store.Upsert(ctx, incident); err != nil {
		return err
	}

	d.logger.Info(ctx, "cascade incident resolved",
		observe.Field{Key: "root_cause", Value: rootCause},
		observe.Field{Key: "incident_id", Value: incident.ID.String()},
	)
	return nil
}

func (d *Detector) bumpStreak(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.healthy[id]++
	return d.healthy[id]
}

func (d *Detector) resetStreak(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.healthy[id] = 0
}

// Forget drops detector state for a deregistered target.
func (d *Detector) Forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.healthy, id)
}
