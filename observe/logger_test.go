package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line not JSON: %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "probe completed", Field{Key: "status", Value: "healthy"})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0]["msg"] != "probe completed" {
		t.Errorf("msg = %v, want probe completed", entries[0]["msg"])
	}
	if entries[0]["level"] != "info" {
		t.Errorf("level = %v, want info", entries[0]["level"])
	}
	if entries[0]["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", entries[0]["status"])
	}
	if entries[0]["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	logger.Debug(context.Background(), "dropped")
	logger.Info(context.Background(), "dropped too")
	logger.Warn(context.Background(), "kept")
	logger.Error(context.Background(), "kept too")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
}

func TestLogger_WithTarget(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	scoped := logger.WithTarget(TargetMeta{
		ID:    "identity-provider",
		Kind:  "service",
		Name:  "Identity Provider",
		Class: "identity",
	})
	scoped.Info(context.Background(), "breaker opened")

	entries := decodeLines(t, &buf)
	if entries[0]["target.id"] != "identity-provider" {
		t.Errorf("target.id = %v, want identity-provider", entries[0]["target.id"])
	}
	if entries[0]["target.class"] != "identity" {
		t.Errorf("target.class = %v, want identity", entries[0]["target.class"])
	}
}

func TestLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "probe configured",
		Field{Key: "token", Value: "super-secret"},
		Field{Key: "endpoint", Value: "http://svc/healthz"},
	)

	entries := decodeLines(t, &buf)
	if entries[0]["token"] != "[REDACTED]" {
		t.Errorf("token = %v, want [REDACTED]", entries[0]["token"])
	}
	if entries[0]["endpoint"] != "http://svc/healthz" {
		t.Errorf("endpoint = %v, want passthrough", entries[0]["endpoint"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
