package record

import (
	"context"
	"time"

	"github.com/jonwraymond/toolwatch/observe"
	"github.com/jonwraymond/toolwatch/probe"
)

// ResponseTimeMetric is the implicit metric recorded for every completed
// probe, in milliseconds.
const ResponseTimeMetric = "response_time_ms"

// RecorderConfig configures the recorder.
type RecorderConfig struct {
	// Store receives status rows and metric samples. Required.
	Store Store

	// History optionally retains recent results for trend queries.
	History *History

	// Logger receives persistence failures. Default: no-op logger.
	Logger observe.Logger
}

// Recorder persists probe outcomes: the current status row on every
// completion (skipped included) and incremental metric aggregates for
// numeric observations.
//
// Persistence failures are logged and never halt scheduling; breaker
// state lives in memory and advances regardless, so the next successful
// write reconciles the row (eventual consistency).
type Recorder struct {
	store   Store
	history *History
	logger  observe.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	return &Recorder{
		store:   cfg.Store,
		history: cfg.History,
		logger:  cfg.Logger,
	}
}

// Apply folds one probe result into the target's status row and metric
// buckets. breakerState is the post-transition breaker state for the row.
// The returned error reflects the first persistence failure; callers may
// count it but must not stop scheduling on it.
func (r *Recorder) Apply(ctx context.Context, result probe.Result, breakerState string) error {
	prev, err := r.store.Status(ctx, result.TargetID)
	if err != nil && err != ErrNotFound {
		r.logger.Warn(ctx, "status read failed; rebuilding row",
			observe.Field{Key: "target", Value: result.TargetID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		prev = TargetStatus{TargetID: result.TargetID}
	}

	row := nextStatus(prev, result, breakerState)
	if err := r.store.UpsertStatus(ctx, row); err != nil {
		r.logger.Error(ctx, "status write failed",
			observe.Field{Key: "target", Value: result.TargetID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return err
	}

	if r.history != nil {
		r.history.Append(result)
	}

	// Skipped ticks made no network call; there is nothing to aggregate.
	if result.Status == probe.StatusSkipped {
		return nil
	}

	samples := make([]Sample, 0, len(result.Metrics)+1)
	samples = append(samples, Sample{
		TargetID: result.TargetID,
		Metric:   ResponseTimeMetric,
		Value:    float64(result.ResponseTime) / float64(time.Millisecond),
		At:       result.Timestamp,
	})
	for name, value := range result.Metrics {
		samples = append(samples, Sample{
			TargetID: result.TargetID,
			Metric:   name,
			Value:    value,
			At:       result.Timestamp,
		})
	}

	var firstErr error
	for _, sample := range samples {
		if err := r.store.UpsertSample(ctx, sample); err != nil {
			r.logger.Error(ctx, "sample write failed",
				observe.Field{Key: "target", Value: sample.TargetID},
				observe.Field{Key: "metric", Value: sample.Metric},
				observe.Field{Key: "error", Value: err.Error()},
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Forget drops the target's status row and history on deregistration.
func (r *Recorder) Forget(ctx context.Context, targetID string) error {
	if r.history != nil {
		r.history.Forget(targetID)
	}
	return r.store.DeleteStatus(ctx, targetID)
}

// nextStatus derives the new status row from the previous one and the
// incoming result. Counters reset-or-increment on real completions and
// stay put on skipped ticks.
func nextStatus(prev TargetStatus, result probe.Result, breakerState string) TargetStatus {
	row := TargetStatus{
		TargetID:             result.TargetID,
		Status:               result.Status,
		Message:              result.Message,
		ResponseTime:         result.ResponseTime,
		LastCheck:            result.Timestamp,
		LastHealthy:          prev.LastHealthy,
		ConsecutiveFailures:  prev.ConsecutiveFailures,
		ConsecutiveSuccesses: prev.ConsecutiveSuccesses,
		BreakerState:         breakerState,
	}

	switch result.Status {
	case probe.StatusHealthy:
		row.LastHealthy = result.Timestamp
		row.ConsecutiveSuccesses = prev.ConsecutiveSuccesses + 1
		row.ConsecutiveFailures = 0
	case probe.StatusDegraded:
		// The target responded; a degraded verdict does not accumulate
		// toward the failure threshold.
		row.ConsecutiveSuccesses = prev.ConsecutiveSuccesses + 1
		row.ConsecutiveFailures = 0
	case probe.StatusUnhealthy:
		row.ConsecutiveFailures = prev.ConsecutiveFailures + 1
		row.ConsecutiveSuccesses = 0
	case probe.StatusSkipped:
		// Keep the previous verdict visible alongside the skipped mark.
		row.ResponseTime = prev.ResponseTime
	}

	return row
}
