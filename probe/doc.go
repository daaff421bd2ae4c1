// Package probe defines health probe execution for toolwatch.
//
// A Checker executes one bounded-time health check against a target and
// returns a uniform Result regardless of what it inspected, so downstream
// components are checker-agnostic. Every transport, timeout, or protocol
// failure is caught inside the checker and converted into an unhealthy
// Result carrying the classified error; nothing propagates to the
// scheduler.
//
// The Registry selects a checker per target: an explicit name in the
// probe spec wins, then the default for the target's kind, then the
// generic HTTP checker.
//
// # Checkers
//
//   - HTTPChecker: bounded request to the health endpoint, with verdict
//     refinement from a JSON status field and a secondary readiness check
//     for critical targets.
//   - RateLimitChecker: remaining rate-limit budget of an integration.
//   - QueueDepthChecker: build/delivery queue backlog.
//   - DeliveryChecker: rolling webhook delivery success ratio over a
//     trailing window, healthy only strictly above the threshold.
//   - IdentityChecker: issuance probe against an identity provider's
//     token endpoint.
//
// # Bounded execution
//
// Run wraps any Checker with the target's timeout and a panic barrier:
//
//	result := probe.Run(ctx, checker, tgt)
//	if result.Status == probe.StatusUnhealthy {
//	    // result.Err is one of ErrProbeTimeout, ErrProbeConnection,
//	    // ErrProbeProtocol
//	}
package probe
