package cascade

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists incidents.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: reads return ErrNotFound for missing rows.
// - Upsert replaces the row keyed by ID.
type Store interface {
	// Upsert inserts or replaces the incident.
	Upsert(ctx context.Context, incident Incident) error

	// Get returns the incident with the given ID.
	Get(ctx context.Context, id uuid.UUID) (Incident, error)

	// OpenByRootCause returns the ongoing incident for the root cause,
	// or ErrNotFound when none is open.
	OpenByRootCause(ctx context.Context, rootCause string) (Incident, error)

	// Open returns all ongoing incidents, newest detection first.
	Open(ctx context.Context) ([]Incident, error)

	// All returns every incident, newest detection first.
	All(ctx context.Context) ([]Incident, error)

	// PruneResolved deletes resolved incidents last updated before cutoff
	// and returns how many were removed.
	PruneResolved(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases store resources.
	Close() error
}
