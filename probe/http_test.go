package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonwraymond/toolwatch/target"
)

func httpTarget(id, endpoint string) *target.Target {
	t := &target.Target{
		ID:    id,
		Kind:  target.KindService,
		Probe: target.ProbeSpec{Endpoint: endpoint},
	}
	if err := t.Validate(); err != nil {
		panic(err)
	}
	return t
}

func TestHTTPChecker_HealthyStatusBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewHTTPChecker()
	result := c.Check(context.Background(), httpTarget("svc", srv.URL))

	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
	if result.ResponseTime <= 0 {
		t.Errorf("ResponseTime = %v, want > 0", result.ResponseTime)
	}
	if result.TargetID != "svc" {
		t.Errorf("TargetID = %q, want svc", result.TargetID)
	}
}

func TestHTTPChecker_BodyStatuses(t *testing.T) {
	tests := []struct {
		body string
		want Status
	}{
		{`{"status":"ok"}`, StatusHealthy},
		{`{"status":"ready"}`, StatusHealthy},
		{`{"status":"healthy"}`, StatusHealthy},
		{`{"status":"degraded"}`, StatusDegraded},
		{`{"status":"broken"}`, StatusUnhealthy},
		{`{"other":"field"}`, StatusHealthy},
		{`not json`, StatusHealthy},
		{``, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			result := NewHTTPChecker().Check(context.Background(), httpTarget("svc", srv.URL))
			if result.Status != tt.want {
				t.Errorf("Status = %v, want %v", result.Status, tt.want)
			}
		})
	}
}

func TestHTTPChecker_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := NewHTTPChecker().Check(context.Background(), httpTarget("svc", srv.URL))

	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Err, ErrProbeProtocol) {
		t.Errorf("Err = %v, want ErrProbeProtocol", result.Err)
	}
	if result.Details["status_code"] != 503 {
		t.Errorf("Details[status_code] = %v, want 503", result.Details["status_code"])
	}
}

func TestHTTPChecker_ConnectionError(t *testing.T) {
	// Reserve a port and close it so the connection is refused.
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := NewHTTPChecker().Check(context.Background(), httpTarget("svc", url))

	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Err, ErrProbeConnection) {
		t.Errorf("Err = %v, want ErrProbeConnection", result.Err)
	}
}

func TestHTTPChecker_ExpectedStatusSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tgt := httpTarget("svc", srv.URL)
	tgt.Probe.ExpectedStatuses = []int{200, 204}

	result := NewHTTPChecker().Check(context.Background(), tgt)
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
}

func TestHTTPChecker_ReadinessDowngrade(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer primary.Close()

	readiness := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer readiness.Close()

	tgt := httpTarget("idp", primary.URL)
	tgt.Critical = true
	tgt.Probe.ReadinessEndpoint = readiness.URL

	result := NewHTTPChecker().Check(context.Background(), tgt)

	// Readiness failure downgrades, never fails outright.
	if result.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", result.Status)
	}
	if _, ok := result.Details["readiness_error"]; !ok {
		t.Error("Details missing readiness_error")
	}
}

func TestHTTPChecker_ReadinessSkippedForNonCritical(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer primary.Close()

	readinessCalled := false
	readiness := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readinessCalled = true
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer readiness.Close()

	tgt := httpTarget("svc", primary.URL)
	tgt.Probe.ReadinessEndpoint = readiness.URL

	result := NewHTTPChecker().Check(context.Background(), tgt)
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", result.Status)
	}
	if readinessCalled {
		t.Error("readiness endpoint called for non-critical target")
	}
}

func TestRun_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tgt := httpTarget("slow", srv.URL)
	tgt.Probe.Timeout = 20 * time.Millisecond
	tgt.Probe.Interval = time.Second

	result := Run(context.Background(), NewHTTPChecker(), tgt)

	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Err, ErrProbeTimeout) {
		t.Errorf("Err = %v, want ErrProbeTimeout", result.Err)
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	panicky := NewCheckerFunc("panicky", func(ctx context.Context, tgt *target.Target) Result {
		panic("boom")
	})

	tgt := httpTarget("svc", "http://unused.invalid/healthz")
	result := Run(context.Background(), panicky, tgt)

	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if !errors.Is(result.Err, ErrProbeProtocol) {
		t.Errorf("Err = %v, want ErrProbeProtocol", result.Err)
	}
}

func TestRun_FillsTargetID(t *testing.T) {
	bare := NewCheckerFunc("bare", func(ctx context.Context, tgt *target.Target) Result {
		return Result{Status: StatusHealthy}
	})

	tgt := httpTarget("svc", "http://unused.invalid/healthz")
	result := Run(context.Background(), bare, tgt)

	if result.TargetID != "svc" {
		t.Errorf("TargetID = %q, want svc", result.TargetID)
	}
	if result.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want filled")
	}
}
