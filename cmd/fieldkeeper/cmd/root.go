package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldkeeper/fieldkeeper/internal/core/config"
	"github.com/fieldkeeper/fieldkeeper/internal/core/db"
	"github.com/fieldkeeper/fieldkeeper/internal/engine"
	"github.com/fieldkeeper/fieldkeeper/internal/registry"
	"github.com/fieldkeeper/fieldkeeper/internal/storage"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "fieldkeeper",
	Short: "FieldKeeper dynamic field schema and storage engine",
	Long: `FieldKeeper manages reusable field groups: their schemas, location
rules, per-record values and portable schema documents.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig merges persistent flag overrides onto the file/env config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from config. Logs go to stderr so
// command output on stdout stays machine-readable.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openEngine wires the full stack for one command invocation. The
// returned closer releases the database connection.
func openEngine() (*engine.Engine, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	log := newLogger(cfg)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}

	e := engine.New(storage.New(queries, log), registry.New(log), log)
	return e, cfg, func() { conn.Close() }, nil
}
