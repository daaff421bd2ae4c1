package breaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means probes flow normally.
	StateClosed State = iota
	// StateOpen means probes are short-circuited to skipped results.
	StateOpen
	// StateHalfOpen means the breaker is testing if the target recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a per-target breaker.
type Config struct {
	// FailureThreshold is the consecutive failures before opening.
	// Default: 3
	FailureThreshold int

	// SuccessThreshold is the consecutive successes in half-open before
	// closing. Default: 2
	SuccessThreshold int

	// Cooldown is how long the breaker stays open before allowing a
	// trial probe. Default: 60 seconds
	Cooldown time.Duration

	// OnStateChange is called when the breaker state changes. It runs
	// with the breaker lock held and must not call back in.
	OnStateChange func(from, to State)
}

// Breaker is the failure-isolation state machine wrapping probes to a
// single target.
//
// Allowed transitions:
//
//	closed    → open      after FailureThreshold consecutive failures
//	open      → half-open after Cooldown, evaluated lazily on Allow
//	half-open → closed    after SuccessThreshold consecutive successes
//	half-open → open      on any failure, resetting the cooldown clock
//	closed    → closed    on success (failure count resets)
//
// While open, Allow returns false: the tick still fires but the probe is
// skipped, and skipped ticks never touch the counters.
type Breaker struct {
	config Config

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailure          time.Time
}

// Snapshot is a point-in-time view of breaker state.
type Snapshot struct {
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastFailure          time.Time
}

// New creates a breaker in the closed state.
func New(config Config) *Breaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 60 * time.Second
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
	}
}

// Allow reports whether the next tick should probe. It performs the lazy
// open→half-open transition when the cooldown has elapsed; no separate
// timer drives it. A false return means the tick produces a skipped
// result without any network call.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked() != StateOpen
}

// Record applies a probe outcome to the state machine. Skipped results
// must not be recorded; only real probe completions count.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.consecutiveFailures = 0
			b.consecutiveSuccesses++
			return
		}
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		b.lastFailure = time.Now()
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.setStateLocked(StateOpen)
		}

	case StateHalfOpen:
		if success {
			b.consecutiveSuccesses++
			b.consecutiveFailures = 0
			if b.consecutiveSuccesses >= b.config.SuccessThreshold {
				b.setStateLocked(StateClosed)
			}
			return
		}
		// Failed during trial: back to open, cooldown clock restarts.
		b.consecutiveFailures++
		b.consecutiveSuccesses = 0
		b.lastFailure = time.Now()
		b.setStateLocked(StateOpen)

	case StateOpen:
		// Results should not arrive while open (ticks short-circuit), but
		// an in-flight probe from before the transition may still land.
		// It carries no new information; counters stay put.
	}
}

// State returns the current state, applying the lazy cooldown transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Snapshot returns the current breaker state and counters.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		State:                b.currentStateLocked(),
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		LastFailure:          b.lastFailure,
	}
}

// Reset returns the breaker to closed with cleared counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	if b.state != StateClosed {
		b.setStateLocked(StateClosed)
	}
}

func (b *Breaker) currentStateLocked() State {
	if b.state == StateOpen && time.Since(b.lastFailure) >= b.config.Cooldown {
		b.setStateLocked(StateHalfOpen)
		b.consecutiveSuccesses = 0
	}
	return b.state
}

func (b *Breaker) setStateLocked(state State) {
	from := b.state
	b.state = state
	if from != state && b.config.OnStateChange != nil {
		b.config.OnStateChange(from, state)
	}
}
