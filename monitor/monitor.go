package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/toolwatch/breaker"
	"github.com/jonwraymond/toolwatch/cascade"
	"github.com/jonwraymond/toolwatch/observe"
	"github.com/jonwraymond/toolwatch/probe"
	"github.com/jonwraymond/toolwatch/record"
	"github.com/jonwraymond/toolwatch/target"
)

// Config configures the monitor.
type Config struct {
	// Checkers resolves targets to probe executors. Required.
	Checkers *probe.Registry

	// Store persists status rows and metric buckets. Required.
	Store record.Store

	// History optionally retains recent results for trend queries.
	History *record.History

	// Detector optionally watches results for cascade failures.
	Detector *cascade.Detector

	// Incidents backs the OpenIncidents query. Optional; pair it with
	// Detector.
	Incidents cascade.Store

	// Logger receives scheduling events. Default: no-op logger.
	Logger observe.Logger

	// Metrics receives probe and breaker telemetry. Default: no-op.
	Metrics observe.Metrics

	// Tracer spans probe executions. Default: no-op.
	Tracer observe.Tracer
}

// Monitor supervises one probe task per registered target.
//
// Contract:
//   - Concurrency: safe for concurrent use. Each target runs on its own
//     goroutine; targets never serialize against each other.
//   - Lifecycle: Register before or after Start; tasks only tick while
//     the monitor runs. Stop cancels every task and waits for them.
//   - Isolation: a slow or failing target affects only its own task.
type Monitor struct {
	checkers  *probe.Registry
	recorder  *record.Recorder
	store     record.Store
	history   *record.History
	detector  *cascade.Detector
	incidents cascade.Store
	breakers  *breaker.Set
	registry  *target.Registry
	logger    observe.Logger
	metrics   observe.Metrics
	mw        *observe.Middleware

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   map[string]*task
	wg      sync.WaitGroup
}

// task is the per-target scheduling state.
type task struct {
	target  *target.Target
	checker probe.Checker
	brk     *breaker.Breaker
	cancel  context.CancelFunc

	// inFlight serializes the immediate first probe against the first
	// tick and drops ticks that overlap a slow probe.
	inFlight atomic.Bool

	// removed marks a deregistered task; an in-flight result observing
	// it is discarded.
	removed atomic.Bool
}

// New creates a monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Checkers == nil {
		return nil, ErrNilCheckers
	}
	if cfg.Store == nil {
		return nil, ErrNilStore
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observe.NopTracer()
	}

	m := &Monitor{
		checkers:  cfg.Checkers,
		store:     cfg.Store,
		history:   cfg.History,
		detector:  cfg.Detector,
		incidents: cfg.Incidents,
		registry:  target.NewRegistry(),
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		mw:        observe.NewMiddleware(cfg.Tracer, cfg.Metrics, cfg.Logger),
		tasks:     make(map[string]*task),
	}
	m.recorder = record.NewRecorder(record.RecorderConfig{
		Store:   cfg.Store,
		History: cfg.History,
		Logger:  cfg.Logger,
	})
	m.breakers = breaker.NewSet(m.onBreakerTransition)
	return m, nil
}

// Start launches probe tasks for all registered targets.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.running = true

	for _, t := range m.registry.All() {
		m.startTaskLocked(t)
	}
	m.logger.Info(ctx, "monitor started",
		observe.Field{Key: "targets", Value: m.registry.Len()},
	)
	return nil
}

// Stop cancels every probe task and waits for them to finish, or for
// ctx to expire.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	m.cancel()
	m.tasks = make(map[string]*task)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info(ctx, "monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register validates the target, creates its breaker, and (when the
// monitor runs) starts its probe task with an immediate first probe.
func (m *Monitor) Register(t *target.Target) error {
	if t == nil {
		return target.ErrNilTarget
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if _, err := m.checkers.Resolve(t); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.registry.Get(t.ID); exists {
		return ErrAlreadyRegistered
	}
	if err := m.registry.Add(t); err != nil {
		return err
	}
	m.breakers.Create(t.ID, breaker.Config{
		FailureThreshold: t.FailureThreshold,
		SuccessThreshold: t.SuccessThreshold,
		Cooldown:         t.Cooldown,
	})

	if m.running {
		m.startTaskLocked(t)
	}
	return nil
}

// Deregister cancels the target's probe task and removes its breaker
// and current status. An in-flight probe completes but its result is
// discarded.
func (m *Monitor) Deregister(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, exists := m.registry.Get(id); !exists {
		m.mu.Unlock()
		return ErrNotRegistered
	}
	if tk, ok := m.tasks[id]; ok {
		tk.removed.Store(true)
		tk.cancel()
		delete(m.tasks, id)
	}
	m.registry.Remove(id)
	m.breakers.Remove(id)
	m.mu.Unlock()

	if m.detector != nil {
		m.detector.Forget(id)
	}
	return m.recorder.Forget(ctx, id)
}

// startTaskLocked launches the probe goroutine for t. Callers hold m.mu
// and have verified the monitor is running.
func (m *Monitor) startTaskLocked(t *target.Target) {
	checker, err := m.checkers.Resolve(t)
	if err != nil {
		// Resolve succeeded at registration; a checker disappearing
		// between then and Start is a wiring bug worth surfacing.
		m.logger.Error(m.ctx, "no checker for target",
			observe.Field{Key: "target", Value: t.ID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return
	}
	brk, ok := m.breakers.Get(t.ID)
	if !ok {
		brk = m.breakers.Create(t.ID, breaker.Config{
			FailureThreshold: t.FailureThreshold,
			SuccessThreshold: t.SuccessThreshold,
			Cooldown:         t.Cooldown,
		})
	}

	taskCtx, cancel := context.WithCancel(m.ctx)
	tk := &task{target: t, checker: checker, brk: brk, cancel: cancel}
	m.tasks[t.ID] = tk

	m.wg.Add(1)
	go m.run(taskCtx, tk)
}

// run is the per-target probe loop: an immediate first probe, then one
// probe per ticker interval.
func (m *Monitor) run(ctx context.Context, tk *task) {
	defer m.wg.Done()

	ticker := time.NewTicker(tk.target.Probe.Interval)
	defer ticker.Stop()

	m.probeOnce(ctx, tk)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeOnce(ctx, tk)
		}
	}
}

// probeOnce executes a single scheduled probe: breaker gate, bounded
// execution, then fan-out to recorder and detector.
func (m *Monitor) probeOnce(ctx context.Context, tk *task) {
	if !tk.inFlight.CompareAndSwap(false, true) {
		// The previous probe is still running; drop this tick rather
		// than queueing overlapping work.
		return
	}
	defer tk.inFlight.Store(false)

	t := tk.target
	var result probe.Result
	if !tk.brk.Allow() {
		result = probe.Skipped(t.ID, "breaker open")
		result.Timestamp = time.Now().UTC()
	} else {
		result = m.execute(ctx, tk)
		// A result that raced deregistration must not feed a breaker
		// the next registrant will not own.
		if !tk.removed.Load() {
			tk.brk.Record(result.Success())
		}
	}

	if tk.removed.Load() {
		return
	}

	// Persistence failures are logged inside the recorder; scheduling
	// continues either way.
	_ = m.recorder.Apply(ctx, result, tk.brk.State().String())

	if m.detector != nil {
		if err := m.detector.HandleResult(ctx, t, result); err != nil {
			m.logger.Error(ctx, "cascade detection failed",
				observe.Field{Key: "target", Value: t.ID},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}
}

// execute runs the probe through the observability middleware.
func (m *Monitor) execute(ctx context.Context, tk *task) probe.Result {
	var result probe.Result
	fn := m.mw.Wrap(func(ctx context.Context, _ observe.TargetMeta) (string, error) {
		result = probe.Run(ctx, tk.checker, tk.target)
		return result.Status.String(), result.Err
	})
	_, _ = fn(ctx, metaFor(tk.target))
	return result
}

// onBreakerTransition feeds breaker state changes into telemetry.
func (m *Monitor) onBreakerTransition(targetID string, from, to breaker.State) {
	meta := observe.TargetMeta{ID: targetID}
	if t, ok := m.registry.Get(targetID); ok {
		meta = metaFor(t)
	}
	m.metrics.RecordBreakerTransition(context.Background(), meta, from.String(), to.String())
	m.logger.WithTarget(meta).Info(context.Background(), "breaker state changed",
		observe.Field{Key: "from", Value: from.String()},
		observe.Field{Key: "to", Value: to.String()},
	)
}

func metaFor(t *target.Target) observe.TargetMeta {
	return observe.TargetMeta{
		ID:       t.ID,
		Kind:     string(t.Kind),
		Name:     t.Name,
		Class:    string(t.Class),
		Critical: t.Critical,
	}
}
