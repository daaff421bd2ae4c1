package record

import (
	"context"
	"time"
)

// Store persists current statuses and aggregated metric buckets.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Atomicity: UpsertSample must update its (target, metric, bucket) row
//     atomically; concurrent samples for different targets never contend on
//     each other's rows.
//   - Errors: reads return ErrNotFound for missing rows.
type Store interface {
	// UpsertStatus replaces the target's current status row.
	UpsertStatus(ctx context.Context, status TargetStatus) error

	// Status returns the target's current status row.
	Status(ctx context.Context, targetID string) (TargetStatus, error)

	// Statuses returns all current status rows.
	Statuses(ctx context.Context) ([]TargetStatus, error)

	// DeleteStatus removes the target's status row. Idempotent.
	DeleteStatus(ctx context.Context, targetID string) error

	// UpsertSample folds one numeric observation into its bucket.
	UpsertSample(ctx context.Context, s Sample) error

	// Buckets returns aggregated rows for the target and metric whose
	// period overlaps [from, to), ordered by period start.
	Buckets(ctx context.Context, targetID, metric string, from, to time.Time) ([]MetricBucket, error)

	// PruneBuckets deletes buckets whose period ended before cutoff and
	// returns how many were removed.
	PruneBuckets(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases store resources.
	Close() error
}
