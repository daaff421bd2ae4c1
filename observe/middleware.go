package observe

import (
	"context"
	"time"
)

// ProbeFunc is the signature of an instrumented probe execution.
type ProbeFunc func(ctx context.Context, meta TargetMeta) (status string, err error)

// Middleware wraps probe execution with observability (tracing, metrics,
// logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ProbeFunc.
//   - Context: propagates context through tracing spans.
//   - Errors: errors from the wrapped function are recorded and
//     propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability
// components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a ProbeFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ProbeFunc) ProbeFunc {
	return func(ctx context.Context, meta TargetMeta) (string, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		status, err := fn(ctx, meta)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordProbe(ctx, meta, duration, status, err)

		targetLogger := m.logger.WithTarget(meta)
		fields := []Field{
			{Key: "status", Value: status},
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			targetLogger.Warn(ctx, "probe completed unhealthy", fields...)
		} else {
			targetLogger.Debug(ctx, "probe completed", fields...)
		}

		return status, err
	}
}
