// Package config provides configuration management for FieldKeeper.
package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config holds the runtime settings shared by the CLI and embedding hosts.
type Config struct {
	// DatabaseURL selects the backend: sqlite://path or postgres://...
	DatabaseURL string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is text or json.
	LogFormat string

	// ExportFormat is the default schema document format, json or yaml.
	ExportFormat string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL:  "sqlite://fieldkeeper.db",
		LogLevel:     "info",
		LogFormat:    "text",
		ExportFormat: "json",
	}
}

// SlogLevel converts the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks the configuration for values that would fail later in
// a less obvious place.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url must be set")
	}
	if !strings.HasPrefix(c.DatabaseURL, "sqlite://") && !strings.HasPrefix(c.DatabaseURL, "postgres://") {
		return fmt.Errorf("database_url must use the sqlite:// or postgres:// scheme, got %q", c.DatabaseURL)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	switch strings.ToLower(c.ExportFormat) {
	case "json", "yaml":
	default:
		return fmt.Errorf("export_format must be json or yaml, got %q", c.ExportFormat)
	}
	return nil
}
