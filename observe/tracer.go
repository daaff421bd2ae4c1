package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// TargetMeta contains metadata about a monitored target for telemetry.
type TargetMeta struct {
	ID       string // Target ID (required)
	Kind     string // service or integration
	Name     string // Display name
	Class    string // identity, gateway, catalog, generic
	Critical bool   // Whether failures can cascade
}

// SpanName returns the deterministic span name for a probe of this target.
// Format: probe.exec.<id>
func (m TargetMeta) SpanName() string {
	return "probe.exec." + m.ID
}

// Tracer wraps OpenTelemetry tracing with probe-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a probe execution.
	StartSpan(ctx context.Context, meta TargetMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer backed by the given OpenTelemetry tracer.
// A nil tracer yields a no-op implementation.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

// NopTracer returns a Tracer that records nothing.
func NopTracer() Tracer {
	return NewTracer(nil)
}

// StartSpan starts a probe span with the target's attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta TargetMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("target.id", meta.ID),
		attribute.String("target.name", meta.Name),
	}
	if meta.Kind != "" {
		attrs = append(attrs, attribute.String("target.kind", meta.Kind))
	}
	if meta.Class != "" {
		attrs = append(attrs, attribute.String("target.class", meta.Class))
	}
	if meta.Critical {
		attrs = append(attrs, attribute.Bool("target.critical", true))
	}

	return t.tracer.Start(ctx, meta.SpanName(), trace.WithAttributes(attrs...))
}

// EndSpan ends the span, marking error status when err is non-nil.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
