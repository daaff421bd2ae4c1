// Package breaker implements per-target circuit breaking for toolwatch.
//
// Each monitored target gets exactly one Breaker. The scheduler asks
// Allow before probing: a false answer means the target is known-broken
// and the tick short-circuits to a skipped result, keeping load off the
// target while the cooldown runs. The open→half-open transition is
// evaluated lazily on the next Allow call rather than by a timer, so an
// idle breaker costs nothing.
//
// Breaker state transitions are observable through Config.OnStateChange,
// and Set fans them out per target ID for recording.
package breaker
