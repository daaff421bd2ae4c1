// Package record persists probe outcomes for toolwatch.
//
// Two shapes are kept. The current status row — one mutable row per
// target — carries the latest verdict, timing, consecutive counters, and
// breaker state. Metric buckets carry numeric observations aggregated
// incrementally into fixed time windows: a running average, min, max, and
// sample count per (target, metric, period). Raw samples are never
// retained, so storage growth is bounded regardless of probe frequency,
// and the final average is independent of arrival order.
//
// Stores: MemoryStore for embedded use and tests, SQLiteStore for
// persistence across restarts. An optional History retains a bounded
// window of recent results per target for trend queries.
package record
