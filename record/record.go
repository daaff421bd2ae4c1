package record

import (
	"time"

	"github.com/jonwraymond/toolwatch/probe"
)

// DefaultBucketPeriod is the fixed aggregation window for metric buckets.
const DefaultBucketPeriod = time.Hour

// TargetStatus is the one mutable row kept per target: its latest verdict
// plus the counters and breaker state exposed to collaborators.
type TargetStatus struct {
	TargetID             string
	Status               probe.Status
	Message              string
	ResponseTime         time.Duration
	LastCheck            time.Time
	LastHealthy          time.Time
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	BreakerState         string
}

// MetricBucket is one incrementally aggregated row, unique per
// (target, metric, period start). Raw samples are never retained.
type MetricBucket struct {
	TargetID    string
	Metric      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Avg         float64
	Min         float64
	Max         float64
	SampleCount int64
}

// Sample is one numeric observation folded into a bucket.
type Sample struct {
	TargetID string
	Metric   string
	Value    float64
	At       time.Time
}

// bucketStart returns the fixed bucket boundary containing t.
func bucketStart(t time.Time, period time.Duration) time.Time {
	return t.UTC().Truncate(period)
}

// fold merges a sample into a bucket using incremental aggregation:
//
//	newAvg = (avg*count + v) / (count+1)
//
// with min/max by comparison and the count advanced by exactly one.
// The final average is order-independent.
func fold(b MetricBucket, v float64) MetricBucket {
	n := b.SampleCount
	b.Avg = (b.Avg*float64(n) + v) / float64(n+1)
	if v < b.Min {
		b.Min = v
	}
	if v > b.Max {
		b.Max = v
	}
	b.SampleCount = n + 1
	return b
}

// newBucket seeds a bucket from its first sample.
func newBucket(s Sample, period time.Duration) MetricBucket {
	start := bucketStart(s.At, period)
	return MetricBucket{
		TargetID:    s.TargetID,
		Metric:      s.Metric,
		PeriodStart: start,
		PeriodEnd:   start.Add(period),
		Avg:         s.Value,
		Min:         s.Value,
		Max:         s.Value,
		SampleCount: 1,
	}
}
