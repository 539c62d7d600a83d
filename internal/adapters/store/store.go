// Package store provides ports.ContractRepository adapters: SQLite for a
// single-node install, Postgres for shared deployments and an in-memory map
// for tests and throwaway runs.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Store is a contract repository that holds resources until closed.
type Store interface {
	ports.ContractRepository
	Close() error
}

// Config selects and configures a store.
type Config struct {
	Driver      string
	Path        string // SQLite data directory
	DSN         string // Postgres connection string
	MaxConns    int32
	DialTimeout time.Duration
}

// Open creates the store named by cfg.Driver and makes sure its schema exists.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case DriverSQLite, "":
		logger.Info("opening sqlite store", zap.String("path", cfg.Path))
		return NewSQLiteStore(cfg.Path)
	case DriverPostgres:
		logger.Info("opening postgres store")
		return NewPostgresStore(ctx, PostgresConfig{
			DSN:         cfg.DSN,
			MaxConns:    cfg.MaxConns,
			DialTimeout: cfg.DialTimeout,
		})
	case DriverMemory:
		logger.Warn("using in-memory store; contracts are lost on exit")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
