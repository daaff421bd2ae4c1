// Package monitor schedules continuous health probes over registered
// targets. Each target gets its own goroutine and ticker; a failing
// target trips its circuit breaker and is skipped until its cooldown
// passes, so one slow integration never delays the others. Probe
// outcomes flow into the record stores, the cascade detector, and the
// observability pipeline.
package monitor
