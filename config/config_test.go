package config

import (
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
service:
  name: toolwatch
  version: 1.2.0
http:
  addr: ":9090"
store:
  driver: sqlite
  dsn: /var/lib/toolwatch/toolwatch.db
observability:
  logging:
    level: debug
retention:
  schedule: "0 * * * *"
  buckets: 168h
  incidents: 720h
defaults:
  interval: 30s
  timeout: 5s
  failure_threshold: 3
  success_threshold: 2
  cooldown: 60s
targets:
  - id: identity-provider
    kind: service
    name: Identity Provider
    class: identity
    critical: true
    endpoint: https://sso.internal/healthz
    readiness_endpoint: https://sso.internal/ready
  - id: jira
    kind: integration
    name: Jira
    checker: ratelimit
    endpoint: https://jira.internal/rest/api/2/myself
    interval: 60s
    headers:
      Authorization: Bearer ${JIRA_TOKEN}
edges:
  - source: identity-provider
    dependent: jira
    critical: true
`

func TestParse(t *testing.T) {
	t.Setenv("JIRA_TOKEN", "tok-123")

	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr = %q, want :9090", cfg.HTTP.Addr)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if cfg.Retention.Buckets.Std() != 168*time.Hour {
		t.Errorf("Retention.Buckets = %v, want 168h", cfg.Retention.Buckets.Std())
	}

	targets := cfg.BuildTargets()
	if len(targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(targets))
	}

	idp := targets[0]
	if !idp.Critical || string(idp.Class) != "identity" {
		t.Errorf("identity-provider = %+v, want critical identity", idp)
	}
	if idp.Probe.Interval != 30*time.Second {
		t.Errorf("default interval = %v, want 30s", idp.Probe.Interval)
	}
	if idp.FailureThreshold != 3 || idp.SuccessThreshold != 2 {
		t.Errorf("thresholds = %d/%d, want defaults 3/2", idp.FailureThreshold, idp.SuccessThreshold)
	}

	jira := targets[1]
	if jira.Probe.Interval != 60*time.Second {
		t.Errorf("declared interval = %v, want 60s override", jira.Probe.Interval)
	}
	if jira.Probe.Checker != "ratelimit" {
		t.Errorf("checker = %q, want ratelimit", jira.Probe.Checker)
	}
	if jira.Probe.Headers["Authorization"] != "Bearer tok-123" {
		t.Errorf("header = %q, want env-expanded token", jira.Probe.Headers["Authorization"])
	}

	edges := cfg.BuildEdges()
	if len(edges) != 1 || !edges[0].Critical {
		t.Errorf("edges = %+v, want one critical edge", edges)
	}
}

func TestParse_MissingEnvVar(t *testing.T) {
	_, err := Parse([]byte(sampleConfig))
	if err == nil || !strings.Contains(err.Error(), "JIRA_TOKEN") {
		t.Fatalf("err = %v, want missing JIRA_TOKEN", err)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Service.Name != "toolwatch" {
		t.Errorf("Service.Name = %q, want toolwatch", cfg.Service.Name)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "store:\n  driver: postgres\n"},
		{"sqlite without dsn", "store:\n  driver: sqlite\n"},
		{"duplicate target id", "targets:\n  - id: a\n    endpoint: http://x\n  - id: a\n    endpoint: http://y\n"},
		{"empty target id", "targets:\n  - endpoint: http://x\n"},
		{"dangling edge", "edges:\n  - source: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("defaults:\n  interval: soon\n"))
	if err == nil {
		t.Fatal("Parse accepted a malformed duration")
	}
}

func TestExpandEnvStrict_DollarEscape(t *testing.T) {
	got, err := expandEnvStrict("cost: $$5")
	if err != nil {
		t.Fatalf("expandEnvStrict: %v", err)
	}
	if got != "cost: $5" {
		t.Errorf("got %q, want literal dollar", got)
	}
}
