package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/toolwatch/breaker"
	"github.com/jonwraymond/toolwatch/cascade"
	"github.com/jonwraymond/toolwatch/probe"
	"github.com/jonwraymond/toolwatch/record"
)

// TargetView is a target's current status joined with its breaker
// snapshot. Status is unknown for a registered target that has not yet
// completed a probe.
type TargetView struct {
	Status  record.TargetStatus
	Breaker breaker.Snapshot
}

// StatusOf returns the target's current view.
func (m *Monitor) StatusOf(ctx context.Context, id string) (TargetView, error) {
	if _, ok := m.registry.Get(id); !ok {
		return TargetView{}, ErrNotRegistered
	}

	view := TargetView{}
	if snap, ok := m.breakers.Snapshot(id); ok {
		view.Breaker = snap
	}

	status, err := m.store.Status(ctx, id)
	if errors.Is(err, record.ErrNotFound) {
		// Registered but never probed.
		view.Status = record.TargetStatus{
			TargetID:     id,
			Status:       probe.StatusUnknown,
			BreakerState: view.Breaker.State.String(),
		}
		return view, nil
	}
	if err != nil {
		return TargetView{}, err
	}
	view.Status = status
	return view, nil
}

// Statuses returns current views for every registered target, in
// registration order.
func (m *Monitor) Statuses(ctx context.Context) ([]TargetView, error) {
	ids := m.registry.IDs()
	out := make([]TargetView, 0, len(ids))
	for _, id := range ids {
		view, err := m.StatusOf(ctx, id)
		if errors.Is(err, ErrNotRegistered) {
			// Deregistered between listing and lookup.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Buckets returns the target's aggregated metric rows overlapping
// [from, to).
func (m *Monitor) Buckets(ctx context.Context, id, metric string, from, to time.Time) ([]record.MetricBucket, error) {
	if _, ok := m.registry.Get(id); !ok {
		return nil, ErrNotRegistered
	}
	return m.store.Buckets(ctx, id, metric, from, to)
}

// OpenIncidents returns ongoing cascade incidents, newest first.
func (m *Monitor) OpenIncidents(ctx context.Context) ([]cascade.Incident, error) {
	if m.incidents == nil {
		return nil, nil
	}
	return m.incidents.Open(ctx)
}

// History returns up to n recent results for the target, newest last.
// It returns nil when history retention is not configured.
func (m *Monitor) History(id string, n int) []probe.Result {
	if m.history == nil {
		return nil
	}
	return m.history.Recent(id, n)
}
