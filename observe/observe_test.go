package observe

import (
	"context"
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "valid minimal",
			cfg:  Config{ServiceName: "toolwatch"},
		},
		{
			name: "invalid tracing exporter",
			cfg: Config{
				ServiceName: "toolwatch",
				Tracing:     TracingConfig{Enabled: true, Exporter: "zipkin"},
			},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name: "sample pct out of range",
			cfg: Config{
				ServiceName: "toolwatch",
				Tracing:     TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "invalid metrics exporter",
			cfg: Config{
				ServiceName: "toolwatch",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: ErrInvalidMetricsExporter,
		},
		{
			name: "invalid log level",
			cfg: Config{
				ServiceName: "toolwatch",
				Logging:     LoggingConfig{Enabled: true, Level: "verbose"},
			},
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "toolwatch"})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer obs.Shutdown(context.Background())

	if obs.Tracer() == nil {
		t.Error("Tracer() = nil, want noop tracer")
	}
	if obs.Meter() == nil {
		t.Error("Meter() = nil, want noop meter")
	}
	if obs.Logger() == nil {
		t.Error("Logger() = nil, want logger")
	}
}

func TestMiddleware_PropagatesResult(t *testing.T) {
	mw := NewMiddleware(NopTracer(), NopMetrics(), NewNopLogger())

	wantErr := errors.New("connect refused")
	fn := mw.Wrap(func(ctx context.Context, meta TargetMeta) (string, error) {
		return "unhealthy", wantErr
	})

	status, err := fn(context.Background(), TargetMeta{ID: "jira"})
	if status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", status)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want propagated %v", err, wantErr)
	}
}
