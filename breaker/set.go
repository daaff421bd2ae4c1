package breaker

import "sync"

// TransitionFunc observes a state change on one target's breaker.
type TransitionFunc func(targetID string, from, to State)

// Set owns one breaker per target. State is partitioned by target ID, so
// no cross-target locking happens beyond the map itself.
type Set struct {
	mu           sync.RWMutex
	breakers     map[string]*Breaker
	onTransition TransitionFunc
}

// NewSet creates an empty breaker set. onTransition may be nil.
func NewSet(onTransition TransitionFunc) *Set {
	return &Set{
		breakers:     make(map[string]*Breaker),
		onTransition: onTransition,
	}
}

// Create installs a breaker for the target, replacing any existing one.
func (s *Set) Create(targetID string, config Config) *Breaker {
	if s.onTransition != nil {
		fn := s.onTransition
		config.OnStateChange = func(from, to State) {
			fn(targetID, from, to)
		}
	}
	b := New(config)

	s.mu.Lock()
	s.breakers[targetID] = b
	s.mu.Unlock()
	return b
}

// Get returns the breaker for the target.
func (s *Set) Get(targetID string) (*Breaker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.breakers[targetID]
	return b, ok
}

// Remove deletes the target's breaker. Exactly one live breaker exists
// per registered target; deregistration removes it here.
func (s *Set) Remove(targetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.breakers, targetID)
}

// Snapshot returns the breaker snapshot for the target.
func (s *Set) Snapshot(targetID string) (Snapshot, bool) {
	b, ok := s.Get(targetID)
	if !ok {
		return Snapshot{}, false
	}
	return b.Snapshot(), true
}

// Len returns the number of live breakers.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.breakers)
}
