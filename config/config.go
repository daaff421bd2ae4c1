package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolwatch/observe"
	"github.com/jonwraymond/toolwatch/target"
)

// File is the top-level YAML configuration shape.
type File struct {
	Service       ServiceConfig       `yaml:"service"`
	HTTP          HTTPConfig          `yaml:"http"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
	Retention     RetentionConfig     `yaml:"retention"`
	Defaults      ProbeDefaults       `yaml:"defaults"`
	Targets       []TargetDeclaration `yaml:"targets"`
	Edges         []EdgeDeclaration   `yaml:"edges"`
}

// ServiceConfig identifies the daemon.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// HTTPConfig configures the query API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects the persistence driver.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory|sqlite
	DSN    string `yaml:"dsn"`
}

// ObservabilityConfig configures tracing, metrics, and logging.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig mirrors observe.TracingConfig in YAML form.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// MetricsConfig mirrors observe.MetricsConfig in YAML form.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// LoggingConfig mirrors observe.LoggingConfig in YAML form.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// RetentionConfig configures the retention sweeper.
type RetentionConfig struct {
	Schedule  string   `yaml:"schedule"`
	Buckets   Duration `yaml:"buckets"`
	Incidents Duration `yaml:"incidents"`
}

// ProbeDefaults supplies fallbacks for target declarations that omit
// probe tuning.
type ProbeDefaults struct {
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	FailureThreshold int      `yaml:"failure_threshold"`
	SuccessThreshold int      `yaml:"success_threshold"`
	Cooldown         Duration `yaml:"cooldown"`
}

// TargetDeclaration defines one monitored target in YAML.
type TargetDeclaration struct {
	ID                string            `yaml:"id"`
	Kind              string            `yaml:"kind"`
	Name              string            `yaml:"name"`
	Class             string            `yaml:"class"`
	Critical          bool              `yaml:"critical"`
	Checker           string            `yaml:"checker,omitempty"`
	Endpoint          string            `yaml:"endpoint"`
	ReadinessEndpoint string            `yaml:"readiness_endpoint,omitempty"`
	Method            string            `yaml:"method,omitempty"`
	Interval          Duration          `yaml:"interval,omitempty"`
	Timeout           Duration          `yaml:"timeout,omitempty"`
	ExpectedStatuses  []int             `yaml:"expected_statuses,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty"`
	FailureThreshold  int               `yaml:"failure_threshold,omitempty"`
	SuccessThreshold  int               `yaml:"success_threshold,omitempty"`
	Cooldown          Duration          `yaml:"cooldown,omitempty"`
}

// EdgeDeclaration defines one dependency edge in YAML.
type EdgeDeclaration struct {
	Source    string `yaml:"source"`
	Dependent string `yaml:"dependent"`
	Critical  bool   `yaml:"critical"`
}

// Load reads, env-expands, and parses the configuration file.
// Environment references are expanded over the raw document before
// parsing, so any string value may carry ${VAR}.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse env-expands and parses raw YAML configuration.
func Parse(raw []byte) (*File, error) {
	expanded, err := expandEnvStrict(string(raw))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &File{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *File) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "toolwatch"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// Validate checks cross-field constraints the YAML shape cannot express.
func (c *File) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store driver sqlite requires a dsn")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	ids := make(map[string]struct{}, len(c.Targets))
	for _, decl := range c.Targets {
		if decl.ID == "" {
			return fmt.Errorf("config: target with empty id")
		}
		if _, dup := ids[decl.ID]; dup {
			return fmt.Errorf("config: duplicate target id %q", decl.ID)
		}
		ids[decl.ID] = struct{}{}
	}

	for _, edge := range c.Edges {
		if edge.Source == "" || edge.Dependent == "" {
			return fmt.Errorf("config: edge with empty source or dependent")
		}
	}
	return nil
}

// ObserveConfig converts the observability section for the observe package.
func (c *File) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service.Name,
		Version:     c.Service.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observability.Tracing.Enabled,
			Exporter:  c.Observability.Tracing.Exporter,
			SamplePct: c.Observability.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observability.Metrics.Enabled,
			Exporter: c.Observability.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observability.Logging.Level,
		},
	}
}

// BuildTargets converts target declarations, applying the configured
// defaults. Validation of the assembled specs happens at registration.
func (c *File) BuildTargets() []*target.Target {
	out := make([]*target.Target, 0, len(c.Targets))
	for _, decl := range c.Targets {
		t := &target.Target{
			ID:       decl.ID,
			Kind:     target.Kind(decl.Kind),
			Name:     decl.Name,
			Class:    target.Class(decl.Class),
			Critical: decl.Critical,
			Probe: target.ProbeSpec{
				Endpoint:          decl.Endpoint,
				ReadinessEndpoint: decl.ReadinessEndpoint,
				Method:            decl.Method,
				Interval:          defaultDuration(decl.Interval, c.Defaults.Interval).Std(),
				Timeout:           defaultDuration(decl.Timeout, c.Defaults.Timeout).Std(),
				ExpectedStatuses:  decl.ExpectedStatuses,
				Headers:           decl.Headers,
				Checker:           decl.Checker,
			},
			FailureThreshold: defaultInt(decl.FailureThreshold, c.Defaults.FailureThreshold),
			SuccessThreshold: defaultInt(decl.SuccessThreshold, c.Defaults.SuccessThreshold),
			Cooldown:         defaultDuration(decl.Cooldown, c.Defaults.Cooldown).Std(),
		}
		out = append(out, t)
	}
	return out
}

// BuildEdges converts edge declarations for the dependency graph.
func (c *File) BuildEdges() []target.DependencyEdge {
	out := make([]target.DependencyEdge, 0, len(c.Edges))
	for _, decl := range c.Edges {
		out = append(out, target.DependencyEdge{
			Source:    decl.Source,
			Dependent: decl.Dependent,
			Critical:  decl.Critical,
		})
	}
	return out
}

func defaultDuration(v, fallback Duration) Duration {
	if v > 0 {
		return v
	}
	return fallback
}

func defaultInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
