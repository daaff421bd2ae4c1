package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/toolwatch/target"
)

// Checker executes health probes against targets.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: Check must honor cancellation/deadlines.
//   - Errors: Check must never panic or return errors out of band; every
//     failure is converted into an unhealthy Result carrying the error.
type Checker interface {
	// Name returns the registry name of this checker.
	Name() string

	// Check probes the target and returns the result.
	Check(ctx context.Context, t *target.Target) Result
}

// CheckerFunc is an adapter to allow ordinary functions to be used as Checkers.
type CheckerFunc struct {
	name string
	fn   func(context.Context, *target.Target) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context, *target.Target) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name returns the registry name of this checker.
func (f *CheckerFunc) Name() string {
	return f.name
}

// Check probes the target.
func (f *CheckerFunc) Check(ctx context.Context, t *target.Target) Result {
	return f.fn(ctx, t)
}

// Registry selects checkers for targets. A target's spec may name a
// checker explicitly; otherwise the default for its kind applies, falling
// back to the registry-wide default. New specialized checkers register
// without touching any central dispatch.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	byKind   map[target.Kind]string
	fallback Checker
}

// NewRegistry creates a registry with the given fallback checker, which
// also registers under its own name.
func NewRegistry(fallback Checker) *Registry {
	r := &Registry{
		checkers: make(map[string]Checker),
		byKind:   make(map[target.Kind]string),
		fallback: fallback,
	}
	if fallback != nil {
		r.checkers[fallback.Name()] = fallback
	}
	return r
}

// Register adds a checker under its name, replacing any previous one.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[c.Name()] = c
}

// SetKindDefault routes targets of the given kind to the named checker.
func (r *Registry) SetKindDefault(kind target.Kind, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = name
}

// Resolve returns the checker for a target. An explicitly named checker
// that is not registered is an error (the spec is malformed); a missing
// kind default falls back to the registry default.
func (r *Registry) Resolve(t *target.Target) (Checker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name := t.Probe.Checker; name != "" {
		c, ok := r.checkers[name]
		if !ok {
			return nil, fmt.Errorf("%w: checker %q not registered", ErrNoChecker, name)
		}
		return c, nil
	}
	if name, ok := r.byKind[t.Kind]; ok {
		if c, ok := r.checkers[name]; ok {
			return c, nil
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("%w: no default checker", ErrNoChecker)
	}
	return r.fallback, nil
}

// Names returns the registered checker names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	return names
}

// Run executes a checker bounded by the target's probe timeout. The
// checker runs in its own goroutine; a panic or overrun never escapes
// this boundary — both convert into an unhealthy Result.
func Run(ctx context.Context, c Checker, t *target.Target) Result {
	ctx, cancel := context.WithTimeout(ctx, t.Probe.Timeout)
	defer cancel()

	start := time.Now()
	resultCh := make(chan Result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultCh <- Unhealthy(t.ID, "checker panicked",
					protocolError("panic: %v", rec)).
					WithResponseTime(time.Since(start))
			}
		}()
		result := c.Check(ctx, t)
		if result.TargetID == "" {
			result.TargetID = t.ID
		}
		if result.ResponseTime == 0 {
			result.ResponseTime = time.Since(start)
		}
		if result.Timestamp.IsZero() {
			result.Timestamp = time.Now()
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-ctx.Done():
		return Unhealthy(t.ID, "probe timed out", classifyTransport(ctx.Err())).
			WithResponseTime(time.Since(start)).
			WithDetails(map[string]any{"timeout": t.Probe.Timeout.String()})
	}
}
