// Package cascade detects cascade failures: a critical target going
// unhealthy while other targets depend on it through critical edges.
// The detector maintains at most one open incident per root cause,
// grades severity and user impact from the root's class and blast
// radius, and resolves the incident after the root cause reports
// consecutively healthy.
package cascade
