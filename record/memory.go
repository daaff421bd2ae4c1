package record

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStoreConfig configures the in-memory store.
type MemoryStoreConfig struct {
	// BucketPeriod is the fixed aggregation window. Default: 1 hour
	BucketPeriod time.Duration
}

// MemoryStore is an in-memory Store implementation. Rows are partitioned
// by key under one lock; each upsert is a single-row read-modify-write.
type MemoryStore struct {
	period time.Duration

	mu       sync.RWMutex
	statuses map[string]TargetStatus
	buckets  map[bucketKey]MetricBucket
}

type bucketKey struct {
	targetID string
	metric   string
	start    int64 // unix nanos of the period start
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(config ...MemoryStoreConfig) *MemoryStore {
	cfg := MemoryStoreConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.BucketPeriod <= 0 {
		cfg.BucketPeriod = DefaultBucketPeriod
	}
	return &MemoryStore{
		period:   cfg.BucketPeriod,
		statuses: make(map[string]TargetStatus),
		buckets:  make(map[bucketKey]MetricBucket),
	}
}

// UpsertStatus replaces the target's current status row.
func (s *MemoryStore) UpsertStatus(_ context.Context, status TargetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.TargetID] = status
	return nil
}

// Status returns the target's current status row.
func (s *MemoryStore) Status(_ context.Context, targetID string) (TargetStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[targetID]
	if !ok {
		return TargetStatus{}, ErrNotFound
	}
	return status, nil
}

// Statuses returns all current status rows sorted by target ID.
func (s *MemoryStore) Statuses(_ context.Context) ([]TargetStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TargetStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

// DeleteStatus removes the target's status row.
func (s *MemoryStore) DeleteStatus(_ context.Context, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, targetID)
	return nil
}

// UpsertSample folds one observation into its bucket.
func (s *MemoryStore) UpsertSample(_ context.Context, sample Sample) error {
	key := bucketKey{
		targetID: sample.TargetID,
		metric:   sample.Metric,
		start:    bucketStart(sample.At, s.period).UnixNano(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[key]; ok {
		s.buckets[key] = fold(b, sample.Value)
	} else {
		s.buckets[key] = newBucket(sample, s.period)
	}
	return nil
}

// Buckets returns aggregated rows overlapping [from, to).
func (s *MemoryStore) Buckets(_ context.Context, targetID, metric string, from, to time.Time) ([]MetricBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MetricBucket, 0)
	for key, b := range s.buckets {
		if key.targetID != targetID || key.metric != metric {
			continue
		}
		if !b.PeriodEnd.After(from) || !b.PeriodStart.Before(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

// PruneBuckets deletes buckets that ended before cutoff.
func (s *MemoryStore) PruneBuckets(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if b.PeriodEnd.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
