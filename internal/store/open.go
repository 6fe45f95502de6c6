package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-intake/internal/config"
	"github.com/goliatone/go-intake/internal/store/postgres"
	"github.com/goliatone/go-intake/internal/store/sqlite"
	"github.com/goliatone/go-intake/pkg/draft"
)

// Handle is an opened store plus what the process needs to check and
// release it.
type Handle struct {
	draft.Store
	Driver string
	ping   func(context.Context) error
	close  func() error
}

// Ping checks the backing database. The memory store is always ready.
func (h *Handle) Ping(ctx context.Context) error {
	if h.ping == nil {
		return nil
	}
	return h.ping(ctx)
}

// Close releases the backing database.
func (h *Handle) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// Open builds the configured store. Postgres schemas are migrated before
// the handle is returned.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := cfg.Store.Driver
	switch driver {
	case "", config.DriverMemory:
		logger.Warn("using in-memory draft store; drafts are lost on restart")
		return &Handle{Store: draft.NewMemoryStore(), Driver: config.DriverMemory}, nil

	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("draft store ready", zap.String("driver", driver), zap.String("path", cfg.Store.SQLitePath))
		return &Handle{Store: s, Driver: driver, ping: s.Ping, close: s.Close}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("store: connect postgres: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		s := postgres.New(pool)
		logger.Info("draft store ready", zap.String("driver", driver))
		return &Handle{Store: s, Driver: driver, ping: s.Ping, close: func() error {
			pool.Close()
			return nil
		}}, nil

	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
