package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/toolwatch/breaker"
	"github.com/jonwraymond/toolwatch/probe"
	"github.com/jonwraymond/toolwatch/record"
	"github.com/jonwraymond/toolwatch/target"
)

// scriptedChecker returns canned results and counts invocations.
type scriptedChecker struct {
	calls   atomic.Int64
	status  probe.Status
	block   chan struct{} // when set, Check blocks until closed
	started chan struct{} // signaled once per Check entry, if set
}

func (c *scriptedChecker) Name() string { return "scripted" }

func (c *scriptedChecker) Check(ctx context.Context, t *target.Target) probe.Result {
	c.calls.Add(1)
	if c.started != nil {
		select {
		case c.started <- struct{}{}:
		default:
		}
	}
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
		}
	}
	switch c.status {
	case probe.StatusUnhealthy:
		return probe.Unhealthy(t.ID, "scripted failure", probe.ErrProbeConnection)
	default:
		return probe.Healthy(t.ID, "scripted ok")
	}
}

func testTarget(id string, interval time.Duration) *target.Target {
	return &target.Target{
		ID:   id,
		Name: id,
		Probe: target.ProbeSpec{
			Endpoint: "http://example.invalid/healthz",
			Interval: interval,
			Timeout:  interval / 2,
		},
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Cooldown:         time.Minute,
	}
}

func newTestMonitor(t *testing.T, checker probe.Checker) (*Monitor, *record.MemoryStore) {
	t.Helper()
	store := record.NewMemoryStore()
	m, err := New(Config{
		Checkers: probe.NewRegistry(checker),
		Store:    store,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, store
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMonitor_ImmediateFirstProbe(t *testing.T) {
	checker := &scriptedChecker{status: probe.StatusHealthy}
	m, store := newTestMonitor(t, checker)

	// A long interval so only the immediate probe can fire.
	if err := m.Register(testTarget("jira", time.Hour)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(context.Background())

	waitFor(t, time.Second, func() bool { return checker.calls.Load() == 1 })

	waitFor(t, time.Second, func() bool {
		_, err := store.Status(context.Background(), "jira")
		return err == nil
	})
	status, _ := store.Status(context.Background(), "jira")
	if status.Status != probe.StatusHealthy {
		t.Errorf("Status = %v, want healthy", status.Status)
	}
}

func TestMonitor_SkipIfBusy(t *testing.T) {
	block := make(chan struct{})
	checker := &scriptedChecker{status: probe.StatusHealthy, block: block, started: make(chan struct{}, 1)}
	m, _ := newTestMonitor(t, checker)

	tgt := testTarget("jira", time.Hour)
	if err := tgt.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	tk := &task{
		target:  tgt,
		checker: checker,
		brk: m.breakers.Create(tgt.ID, breaker.Config{
			FailureThreshold: tgt.FailureThreshold,
			SuccessThreshold: tgt.SuccessThreshold,
			Cooldown:         tgt.Cooldown,
		}),
	}

	done := make(chan struct{})
	go func() {
		m.probeOnce(context.Background(), tk)
		close(done)
	}()
	<-checker.started

	// Invocations overlapping the stuck probe must be dropped, not queued.
	for i := 0; i < 5; i++ {
		m.probeOnce(context.Background(), tk)
	}
	if calls := checker.calls.Load(); calls != 1 {
		t.Errorf("calls during in-flight probe = %d, want 1", calls)
	}

	close(block)
	<-done
	if calls := checker.calls.Load(); calls != 1 {
		t.Errorf("calls after completion = %d, want 1", calls)
	}
}

func TestMonitor_BreakerOpensAndSkips(t *testing.T) {
	checker := &scriptedChecker{status: probe.StatusUnhealthy}
	m, store := newTestMonitor(t, checker)

	if err := m.Register(testTarget("jira", 10*time.Millisecond)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(context.Background())

	// Three consecutive failures trip the breaker.
	waitFor(t, 2*time.Second, func() bool {
		view, err := m.StatusOf(context.Background(), "jira")
		return err == nil && view.Breaker.State == breaker.StateOpen
	})
	callsWhenOpen := checker.calls.Load()
	if callsWhenOpen < 3 {
		t.Errorf("calls before open = %d, want >= failure threshold", callsWhenOpen)
	}

	// With the breaker open (cooldown 1m), ticks skip without probing.
	waitFor(t, 2*time.Second, func() bool {
		view, err := m.StatusOf(context.Background(), "jira")
		return err == nil && view.Status.Status == probe.StatusSkipped
	})
	time.Sleep(50 * time.Millisecond)
	if calls := checker.calls.Load(); calls != callsWhenOpen {
		t.Errorf("calls after open = %d, want unchanged %d", calls, callsWhenOpen)
	}

	status, err := store.Status(context.Background(), "jira")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.BreakerState != "open" {
		t.Errorf("BreakerState = %q, want open", status.BreakerState)
	}
	if status.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3 (skipped ticks leave counters alone)", status.ConsecutiveFailures)
	}
}

func TestMonitor_DeregisterDiscardsInFlightResult(t *testing.T) {
	block := make(chan struct{})
	checker := &scriptedChecker{status: probe.StatusHealthy, block: block, started: make(chan struct{}, 1)}
	m, store := newTestMonitor(t, checker)

	tgt := testTarget("jira", time.Hour)
	if err := m.Register(tgt); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop(context.Background())

	<-checker.started
	if err := m.Deregister(context.Background(), "jira"); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	close(block)
	time.Sleep(50 * time.Millisecond)

	if _, err := store.Status(context.Background(), "jira"); !errors.Is(err, record.ErrNotFound) {
		t.Errorf("status after deregister: err = %v, want ErrNotFound (in-flight result discarded)", err)
	}
	if _, err := m.StatusOf(context.Background(), "jira"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("StatusOf after deregister: err = %v, want ErrNotRegistered", err)
	}
}

func TestMonitor_UnknownBeforeFirstProbe(t *testing.T) {
	checker := &scriptedChecker{status: probe.StatusHealthy}
	m, _ := newTestMonitor(t, checker)

	if err := m.Register(testTarget("jira", time.Hour)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	view, err := m.StatusOf(context.Background(), "jira")
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if view.Status.Status != probe.StatusUnknown {
		t.Errorf("Status = %v, want unknown before first probe", view.Status.Status)
	}
	if view.Breaker.State != breaker.StateClosed {
		t.Errorf("Breaker.State = %v, want closed", view.Breaker.State)
	}
}

func TestMonitor_RegisterDuplicate(t *testing.T) {
	checker := &scriptedChecker{status: probe.StatusHealthy}
	m, _ := newTestMonitor(t, checker)

	if err := m.Register(testTarget("jira", time.Hour)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(testTarget("jira", time.Hour)); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("duplicate Register: err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestMonitor_RegisterRejectsInvalidSpec(t *testing.T) {
	checker := &scriptedChecker{status: probe.StatusHealthy}
	m, _ := newTestMonitor(t, checker)

	bad := testTarget("jira", time.Hour)
	bad.Probe.Endpoint = ""
	if err := m.Register(bad); !errors.Is(err, target.ErrInvalidSpec) {
		t.Errorf("Register with empty endpoint: err = %v, want ErrInvalidSpec", err)
	}
}

func TestMonitor_StartStop(t *testing.T) {
	checker := &scriptedChecker{status: probe.StatusHealthy}
	m, _ := newTestMonitor(t, checker)

	if err := m.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop before Start: err = %v, want ErrNotRunning", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start: err = %v, want ErrAlreadyRunning", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
