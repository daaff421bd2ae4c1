package cascade

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[uuid.UUID]Incident
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{incidents: make(map[uuid.UUID]Incident)}
}

// Upsert inserts or replaces the incident.
func (s *MemoryStore) Upsert(_ context.Context, incident Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

// Get returns the incident with the given ID.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	incident, ok := s.incidents[id]
	if !ok {
		return Incident{}, ErrNotFound
	}
	return cloneIncident(incident), nil
}

// OpenByRootCause returns the ongoing incident for the root cause.
func (s *MemoryStore) OpenByRootCause(_ context.Context, rootCause string) (Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, incident := range s.incidents {
		if incident.RootCause == rootCause && incident.Open() {
			return cloneIncident(incident), nil
		}
	}
	return Incident{}, ErrNotFound
}

// Open returns all ongoing incidents, newest detection first.
func (s *MemoryStore) Open(ctx context.Context) ([]Incident, error) {
	return s.list(func(i Incident) bool { return i.Open() })
}

// All returns every incident, newest detection first.
func (s *MemoryStore) All(ctx context.Context) ([]Incident, error) {
	return s.list(func(Incident) bool { return true })
}

func (s *MemoryStore) list(keep func(Incident) bool) ([]Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Incident, 0, len(s.incidents))
	for _, incident := range s.incidents {
		if keep(incident) {
			out = append(out, cloneIncident(incident))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].DetectedAt.After(out[b].DetectedAt)
	})
	return out, nil
}

// PruneResolved deletes resolved incidents last updated before cutoff.
func (s *MemoryStore) PruneResolved(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, incident := range s.incidents {
		if !incident.Open() && incident.UpdatedAt.Before(cutoff) {
			delete(s.incidents, id)
			pruned++
		}
	}
	return pruned, nil
}

// Close releases store resources.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneIncident(i Incident) Incident {
	affected := make([]string, len(i.Affected))
	copy(affected, i.Affected)
	i.Affected = affected
	return i
}

var _ Store = (*MemoryStore)(nil)
