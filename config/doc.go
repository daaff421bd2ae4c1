// Package config loads the daemon's declarative YAML configuration:
// HTTP binding, storage driver, observability settings, retention, and
// the monitored target and dependency declarations. String values may
// reference environment variables with ${VAR}; references to unset
// variables fail the load so credentials are never silently blank.
package config
