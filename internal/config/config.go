// Package config provides configuration loading for clausecheck.
//
// Values come from an optional YAML file overridden by CLAUSECHECK_*
// environment variables, with defaults filled in for anything left unset.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds the complete clausecheck configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Extractor ExtractorConfig `koanf:"extractor"`
	Watcher   WatcherConfig   `koanf:"watcher"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StoreConfig selects and configures the contract repository.
type StoreConfig struct {
	Driver      string        `koanf:"driver"` // sqlite, postgres or memory
	Path        string        `koanf:"path"`   // sqlite data directory
	DSN         string        `koanf:"dsn"`    // postgres connection string
	MaxConns    int32         `koanf:"max_conns"`
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// ExtractorConfig configures text extraction.
type ExtractorConfig struct {
	PDFServiceURL string        `koanf:"pdf_service_url"`
	Timeout       time.Duration `koanf:"timeout"`
	StartService  bool          `koanf:"start_service"` // run script_dir/pdf_service.py when the service is down
	ScriptDir     string        `koanf:"script_dir"`
}

// WatcherConfig configures the inbox folder watcher.
type WatcherConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Dir        string        `koanf:"dir"`
	Extensions []string      `koanf:"extensions"`
	Settle     time.Duration `koanf:"settle"`
}

// IngestConfig configures batch ingestion.
type IngestConfig struct {
	Workers int `koanf:"workers"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 2 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 25 << 20
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "sqlite"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data"
	}
	if cfg.Store.MaxConns == 0 {
		cfg.Store.MaxConns = 8
	}
	if cfg.Store.DialTimeout == 0 {
		cfg.Store.DialTimeout = 10 * time.Second
	}

	if cfg.Extractor.PDFServiceURL == "" {
		cfg.Extractor.PDFServiceURL = "http://localhost:8081"
	}
	if cfg.Extractor.Timeout == 0 {
		cfg.Extractor.Timeout = 60 * time.Second
	}
	if cfg.Extractor.ScriptDir == "" {
		cfg.Extractor.ScriptDir = "./scripts"
	}

	if cfg.Watcher.Dir == "" {
		cfg.Watcher.Dir = "./inbox"
	}
	if cfg.Watcher.Settle == 0 {
		cfg.Watcher.Settle = 500 * time.Millisecond
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload size: %d", c.Server.MaxUploadBytes)
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store path required for sqlite")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store dsn required for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite, postgres or memory)", c.Store.Driver)
	}
	if c.Store.MaxConns < 0 {
		return fmt.Errorf("invalid store max conns: %d", c.Store.MaxConns)
	}

	if c.Extractor.Timeout <= 0 {
		return errors.New("extractor timeout must be positive")
	}

	if c.Watcher.Enabled && c.Watcher.Dir == "" {
		return errors.New("watcher directory required when watcher is enabled")
	}
	for _, ext := range c.Watcher.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watcher extension %q must start with a dot", ext)
		}
	}
	if c.Watcher.Settle < 0 {
		return errors.New("watcher settle period must not be negative")
	}

	if c.Ingest.Workers < 1 || c.Ingest.Workers > 64 {
		return fmt.Errorf("invalid ingest workers: %d (must be 1-64)", c.Ingest.Workers)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (want json or console)", c.Log.Format)
	}

	return nil
}
