package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/toolwatch/probe"

	_ "modernc.org/sqlite"
)

const statusSQLiteSchema = `
CREATE TABLE IF NOT EXISTS target_status (
	target_id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	message TEXT,
	response_time_ns INTEGER NOT NULL DEFAULT 0,
	last_check TEXT NOT NULL,
	last_healthy TEXT,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	consecutive_successes INTEGER NOT NULL DEFAULT 0,
	breaker_state TEXT NOT NULL DEFAULT 'closed'
);

CREATE TABLE IF NOT EXISTS metric_buckets (
	target_id TEXT NOT NULL,
	metric TEXT NOT NULL,
	period_start TEXT NOT NULL,
	period_end TEXT NOT NULL,
	avg REAL NOT NULL,
	min REAL NOT NULL,
	max REAL NOT NULL,
	sample_count INTEGER NOT NULL,
	PRIMARY KEY (target_id, metric, period_start)
);

CREATE INDEX IF NOT EXISTS idx_metric_buckets_range
ON metric_buckets(target_id, metric, period_start);`

// The conflict clause performs the incremental aggregation in one
// statement, which keeps the per-row update atomic under concurrent
// target tasks.
const upsertSampleSQL = `
INSERT INTO metric_buckets (target_id, metric, period_start, period_end, avg, min, max, sample_count)
VALUES (?, ?, ?, ?, ?, ?, ?, 1)
ON CONFLICT(target_id, metric, period_start) DO UPDATE SET
	avg = (avg * sample_count + excluded.avg) / (sample_count + 1),
	min = MIN(min, excluded.min),
	max = MAX(max, excluded.max),
	sample_count = sample_count + 1`

const upsertStatusSQL = `
INSERT INTO target_status (target_id, status, message, response_time_ns, last_check, last_healthy, consecutive_failures, consecutive_successes, breaker_state)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(target_id) DO UPDATE SET
	status = excluded.status,
	message = excluded.message,
	response_time_ns = excluded.response_time_ns,
	last_check = excluded.last_check,
	last_healthy = excluded.last_healthy,
	consecutive_failures = excluded.consecutive_failures,
	consecutive_successes = excluded.consecutive_successes,
	breaker_state = excluded.breaker_state`

// SQLiteStoreConfig configures the SQLite-backed store.
type SQLiteStoreConfig struct {
	// DSN is the SQLite data source name. Required.
	DSN string

	// BucketPeriod is the fixed aggregation window. Default: 1 hour
	BucketPeriod time.Duration
}

// SQLiteStore persists statuses and metric buckets in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	period time.Duration
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("record: sqlite dsn is required")
	}
	if cfg.BucketPeriod <= 0 {
		cfg.BucketPeriod = DefaultBucketPeriod
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("record: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record: sqlite journal mode: %w", err)
	}
	if _, err := db.Exec(statusSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("record: sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, period: cfg.BucketPeriod}, nil
}

// UpsertStatus replaces the target's current status row.
func (s *SQLiteStore) UpsertStatus(ctx context.Context, status TargetStatus) error {
	lastHealthy := sql.NullString{}
	if !status.LastHealthy.IsZero() {
		lastHealthy = sql.NullString{String: formatTime(status.LastHealthy), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, upsertStatusSQL,
		status.TargetID,
		status.Status.String(),
		status.Message,
		int64(status.ResponseTime),
		formatTime(status.LastCheck),
		lastHealthy,
		status.ConsecutiveFailures,
		status.ConsecutiveSuccesses,
		status.BreakerState,
	)
	if err != nil {
		return fmt.Errorf("record: upsert status: %w", err)
	}
	return nil
}

// Status returns the target's current status row.
func (s *SQLiteStore) Status(ctx context.Context, targetID string) (TargetStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT target_id, status, message, response_time_ns, last_check, last_healthy, consecutive_failures, consecutive_successes, breaker_state
		 FROM target_status WHERE target_id = ?`, targetID)

	status, err := scanStatus(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return TargetStatus{}, ErrNotFound
	}
	if err != nil {
		return TargetStatus{}, fmt.Errorf("record: read status: %w", err)
	}
	return status, nil
}

// Statuses returns all current status rows ordered by target ID.
func (s *SQLiteStore) Statuses(ctx context.Context) ([]TargetStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, status, message, response_time_ns, last_check, last_healthy, consecutive_failures, consecutive_successes, breaker_state
		 FROM target_status ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("record: list statuses: %w", err)
	}
	defer rows.Close()

	out := make([]TargetStatus, 0)
	for rows.Next() {
		status, err := scanStatus(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("record: scan status: %w", err)
		}
		out = append(out, status)
	}
	return out, rows.Err()
}

// DeleteStatus removes the target's status row.
func (s *SQLiteStore) DeleteStatus(ctx context.Context, targetID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM target_status WHERE target_id = ?`, targetID); err != nil {
		return fmt.Errorf("record: delete status: %w", err)
	}
	return nil
}

// UpsertSample folds one observation into its bucket in one statement.
func (s *SQLiteStore) UpsertSample(ctx context.Context, sample Sample) error {
	start := bucketStart(sample.At, s.period)
	_, err := s.db.ExecContext(ctx, upsertSampleSQL,
		sample.TargetID,
		sample.Metric,
		formatTime(start),
		formatTime(start.Add(s.period)),
		sample.Value,
		sample.Value,
		sample.Value,
	)
	if err != nil {
		return fmt.Errorf("record: upsert sample: %w", err)
	}
	return nil
}

// Buckets returns aggregated rows overlapping [from, to).
func (s *SQLiteStore) Buckets(ctx context.Context, targetID, metric string, from, to time.Time) ([]MetricBucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, metric, period_start, period_end, avg, min, max, sample_count
		 FROM metric_buckets
		 WHERE target_id = ? AND metric = ? AND period_end > ? AND period_start < ?
		 ORDER BY period_start`,
		targetID, metric, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("record: query buckets: %w", err)
	}
	defer rows.Close()

	out := make([]MetricBucket, 0)
	for rows.Next() {
		var (
			b          MetricBucket
			start, end string
		)
		if err := rows.Scan(&b.TargetID, &b.Metric, &start, &end, &b.Avg, &b.Min, &b.Max, &b.SampleCount); err != nil {
			return nil, fmt.Errorf("record: scan bucket: %w", err)
		}
		if b.PeriodStart, err = parseTime(start); err != nil {
			return nil, err
		}
		if b.PeriodEnd, err = parseTime(end); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PruneBuckets deletes buckets that ended before cutoff.
func (s *SQLiteStore) PruneBuckets(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metric_buckets WHERE period_end < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("record: prune buckets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanStatus(scan func(...any) error) (TargetStatus, error) {
	var (
		status      TargetStatus
		statusStr   string
		responseNS  int64
		lastCheck   string
		lastHealthy sql.NullString
	)
	err := scan(&status.TargetID, &statusStr, &status.Message, &responseNS, &lastCheck, &lastHealthy,
		&status.ConsecutiveFailures, &status.ConsecutiveSuccesses, &status.BreakerState)
	if err != nil {
		return TargetStatus{}, err
	}

	status.Status = parseStatus(statusStr)
	status.ResponseTime = time.Duration(responseNS)
	if status.LastCheck, err = parseTime(lastCheck); err != nil {
		return TargetStatus{}, err
	}
	if lastHealthy.Valid {
		if status.LastHealthy, err = parseTime(lastHealthy.String); err != nil {
			return TargetStatus{}, err
		}
	}
	return status, nil
}

func parseStatus(s string) probe.Status {
	switch s {
	case "healthy":
		return probe.StatusHealthy
	case "degraded":
		return probe.StatusDegraded
	case "unhealthy":
		return probe.StatusUnhealthy
	case "skipped":
		return probe.StatusSkipped
	default:
		return probe.StatusUnknown
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("record: parse time %q: %w", s, err)
	}
	return t, nil
}

var _ Store = (*SQLiteStore)(nil)
