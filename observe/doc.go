// Package observe provides observability primitives for toolwatch.
//
// It is a pure instrumentation library: no probing, no transport, no I/O
// beyond exporter setup. The monitor wires the Observer in and wraps each
// probe execution with Middleware for spans, counters, a duration
// histogram, and target-scoped structured logs.
package observe
