package cascade

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const incidentSQLiteSchema = `
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	root_cause TEXT NOT NULL,
	affected TEXT NOT NULL,
	severity TEXT NOT NULL,
	user_impact TEXT NOT NULL,
	detected_at TEXT NOT NULL,
	started_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	resolution TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_root_cause
ON incidents(root_cause, resolution);`

const upsertIncidentSQL = `
INSERT INTO incidents (id, root_cause, affected, severity, user_impact, detected_at, started_at, updated_at, resolution)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	root_cause = excluded.root_cause,
	affected = excluded.affected,
	severity = excluded.severity,
	user_impact = excluded.user_impact,
	detected_at = excluded.detected_at,
	started_at = excluded.started_at,
	updated_at = excluded.updated_at,
	resolution = excluded.resolution`

const selectIncidentSQL = `
SELECT id, root_cause, affected, severity, user_impact, detected_at, started_at, updated_at, resolution
FROM incidents`

// SQLiteStoreConfig configures the SQLite-backed incident store.
type SQLiteStoreConfig struct {
	// DSN is the SQLite data source name. Required.
	DSN string
}

// SQLiteStore persists incidents in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed incident store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("cascade: sqlite dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("cascade: sqlite open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cascade: sqlite journal mode: %w", err)
	}
	if _, err := db.Exec(incidentSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cascade: sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Upsert inserts or replaces the incident.
func (s *SQLiteStore) Upsert(ctx context.Context, incident Incident) error {
	affected, err := json.Marshal(incident.Affected)
	if err != nil {
		return fmt.Errorf("cascade: encode affected: %w", err)
	}
	_, err = s.db.ExecContext(ctx, upsertIncidentSQL,
		incident.ID.String(),
		incident.RootCause,
		string(affected),
		string(incident.Severity),
		string(incident.UserImpact),
		formatTime(incident.DetectedAt),
		formatTime(incident.StartedAt),
		formatTime(incident.UpdatedAt),
		string(incident.Resolution),
	)
	if err != nil {
		return fmt.Errorf("cascade: upsert incident: %w", err)
	}
	return nil
}

// Get returns the incident with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id uuid.UUID) (Incident, error) {
	row := s.db.QueryRowContext(ctx, selectIncidentSQL+` WHERE id = ?`, id.String())

	incident, err := scanIncident(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Incident{}, ErrNotFound
	}
	if err != nil {
		return Incident{}, fmt.Errorf("cascade: read incident: %w", err)
	}
	return incident, nil
}

// OpenByRootCause returns the ongoing incident for the root cause.
func (s *SQLiteStore) OpenByRootCause(ctx context.Context, rootCause string) (Incident, error) {
	row := s.db.QueryRowContext(ctx,
		selectIncidentSQL+` WHERE root_cause = ? AND resolution = ? ORDER BY detected_at DESC LIMIT 1`,
		rootCause, string(ResolutionOngoing))

	incident, err := scanIncident(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Incident{}, ErrNotFound
	}
	if err != nil {
		return Incident{}, fmt.Errorf("cascade: read incident: %w", err)
	}
	return incident, nil
}

// Open returns all ongoing incidents, newest detection first.
func (s *SQLiteStore) Open(ctx context.Context) ([]Incident, error) {
	return s.query(ctx, selectIncidentSQL+` WHERE resolution = ? ORDER BY detected_at DESC`, string(ResolutionOngoing))
}

// All returns every incident, newest detection first.
func (s *SQLiteStore) All(ctx context.Context) ([]Incident, error) {
	return s.query(ctx, selectIncidentSQL+` ORDER BY detected_at DESC`)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("cascade: list incidents: %w", err)
	}
	defer rows.Close()

	out := make([]Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("cascade: scan incident: %w", err)
		}
		out = append(out, incident)
	}
	return out, rows.Err()
}

// PruneResolved deletes resolved incidents last updated before cutoff.
func (s *SQLiteStore) PruneResolved(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM incidents WHERE resolution = ? AND updated_at < ?`,
		string(ResolutionResolved), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cascade: prune incidents: %w", err)
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

func scanIncident(scan func(...any) error) (Incident, error) {
	var (
		incident                         Incident
		id, affected                     string
		severity, impact, resolution     string
		detectedAt, startedAt, updatedAt string
	)
	err := scan(&id, &incident.RootCause, &affected, &severity, &impact, &detectedAt, &startedAt, &updatedAt, &resolution)
	if err != nil {
		return Incident{}, err
	}

	if incident.ID, err = uuid.Parse(id); err != nil {
		return Incident{}, fmt.Errorf("cascade: parse incident id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(affected), &incident.Affected); err != nil {
		return Incident{}, fmt.Errorf("cascade: decode affected: %w", err)
	}
	incident.Severity = Severity(severity)
	incident.UserImpact = UserImpact(impact)
	incident.Resolution = Resolution(resolution)
	if incident.DetectedAt, err = parseTime(detectedAt); err != nil {
		return Incident{}, err
	}
	if incident.StartedAt, err = parseTime(startedAt); err != nil {
		return Incident{}, err
	}
	if incident.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Incident{}, err
	}
	return incident, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("cascade: parse time %q: %w", s, err)
	}
	return t, nil
}

var _ Store = (*SQLiteStore)(nil)
