package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records probe execution and breaker telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one probe completion with its duration and
	// verdict ("healthy", "degraded", "unhealthy", "skipped").
	RecordProbe(ctx context.Context, meta TargetMeta, duration time.Duration, status string, err error)

	// RecordBreakerTransition records one circuit breaker state change.
	RecordBreakerTransition(ctx context.Context, meta TargetMeta, from, to string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	skippedCount metric.Int64Counter
	durationHist metric.Float64Histogram
	transitions  metric.Int64Counter
}

// NewMetrics creates a Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"probe.exec.total",
		metric.WithDescription("Total number of probe executions"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"probe.exec.errors",
		metric.WithDescription("Total number of unhealthy probe outcomes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	skippedCount, err := meter.Int64Counter(
		"probe.exec.skipped",
		metric.WithDescription("Probe ticks short-circuited by an open breaker"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"probe.exec.duration_ms",
		metric.WithDescription("Probe execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		skippedCount: skippedCount,
		durationHist: durationHist,
		transitions:  transitions,
	}, nil
}

// RecordProbe records metrics for one probe completion.
func (m *metricsImpl) RecordProbe(ctx context.Context, meta TargetMeta, duration time.Duration, status string, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("target.id", meta.ID),
		attribute.String("target.kind", meta.Kind),
		attribute.String("probe.status", status),
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)

	if status == "skipped" {
		m.skippedCount.Add(ctx, 1, opt)
		// No duration to record on a tick that never left the process.
		return
	}

	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordBreakerTransition records one breaker state change.
func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, meta TargetMeta, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target.id", meta.ID),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// NopMetrics returns a Metrics implementation that does nothing.
func NopMetrics() Metrics {
	return &nopMetrics{}
}

type nopMetrics struct{}

func (m *nopMetrics) RecordProbe(ctx context.Context, meta TargetMeta, duration time.Duration, status string, err error) {
}

func (m *nopMetrics) RecordBreakerTransition(ctx context.Context, meta TargetMeta, from, to string) {
}
