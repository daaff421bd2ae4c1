package probe

import "time"

// Status represents the outcome of a probe.
type Status int

const (
	// StatusHealthy indicates the target is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the target is functioning but with issues.
	StatusDegraded
	// StatusUnhealthy indicates the target is not functioning properly.
	StatusUnhealthy
	// StatusSkipped indicates the probe was short-circuited by an open
	// circuit breaker; no network call was made.
	StatusSkipped
	// StatusUnknown indicates no probe has completed for the target yet.
	StatusUnknown
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result contains the outcome of one probe against one target.
type Result struct {
	// TargetID identifies the probed target.
	TargetID string

	// Status is the probe verdict.
	Status Status

	// Message provides additional context about the verdict.
	Message string

	// ResponseTime is how long the probe took.
	ResponseTime time.Duration

	// Metrics holds numeric observations to aggregate into time buckets.
	Metrics map[string]float64

	// Details contains arbitrary metadata about the probe.
	Details map[string]any

	// Timestamp is when the probe completed.
	Timestamp time.Time

	// Err is the probe error, classified into the package taxonomy.
	Err error
}

// Healthy creates a healthy result.
func Healthy(targetID, message string) Result {
	return Result{
		TargetID:  targetID,
		Status:    StatusHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded result.
func Degraded(targetID, message string) Result {
	return Result{
		TargetID:  targetID,
		Status:    StatusDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy result carrying err.
func Unhealthy(targetID, message string, err error) Result {
	return Result{
		TargetID:  targetID,
		Status:    StatusUnhealthy,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Skipped creates a skipped result for a breaker-short-circuited tick.
func Skipped(targetID, message string) Result {
	return Result{
		TargetID:  targetID,
		Status:    StatusSkipped,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithDetails adds details to a result.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithMetrics adds numeric metrics to a result.
func (r Result) WithMetrics(metrics map[string]float64) Result {
	r.Metrics = metrics
	return r
}

// WithResponseTime sets the response time on a result.
func (r Result) WithResponseTime(d time.Duration) Result {
	r.ResponseTime = d
	return r
}

// Success reports whether the result counts as a success for breaker
// purposes. Degraded targets responded, so they do not trip the breaker.
func (r Result) Success() bool {
	return r.Status == StatusHealthy || r.Status == StatusDegraded
}
