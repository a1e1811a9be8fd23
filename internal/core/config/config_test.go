package config

import (
	"os"
	"strings"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabaseURL != "sqlite://fieldkeeper.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("logging defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ExportFormat != "json" {
		t.Errorf("ExportFormat = %q", cfg.ExportFormat)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("FK_DATABASE_URL", "postgres://fk:fk@localhost/fk?sslmode=disable")
	t.Setenv("FK_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") {
		t.Errorf("env override ignored, DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadConfig_File(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	content := `database_url: "sqlite:///tmp/other.db"
log_format: "json"
export_format: "yaml"
`
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	tmpfile.Close()

	cfg, err := LoadConfig(tmpfile.Name())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DatabaseURL != "sqlite:///tmp/other.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.LogFormat != "json" || cfg.ExportFormat != "yaml" {
		t.Errorf("file values = %q/%q", cfg.LogFormat, cfg.ExportFormat)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"postgres url", func(c *Config) { c.DatabaseURL = "postgres://u:p@h/db" }, false},
		{"empty database url", func(c *Config) { c.DatabaseURL = "" }, true},
		{"bare file path", func(c *Config) { c.DatabaseURL = "/tmp/fk.db" }, true},
		{"mysql scheme", func(c *Config) { c.DatabaseURL = "mysql://u:p@h/db" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"warning alias", func(c *Config) { c.LogLevel = "warning" }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"bad export format", func(c *Config) { c.ExportFormat = "toml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := DefaultConfig()
	for level, want := range map[string]string{
		"debug": "DEBUG",
		"info":  "INFO",
		"warn":  "WARN",
		"error": "ERROR",
		"":      "INFO",
	} {
		cfg.LogLevel = level
		if got := cfg.SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%q) = %s, want %s", level, got, want)
		}
	}
}
