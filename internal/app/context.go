// Package app wires config, storage and the engine for the CLI and server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"worklist/internal/config"
	"worklist/internal/db"
	"worklist/internal/engine"
	"worklist/internal/memstore"
	"worklist/internal/migrate"
	"worklist/internal/repo"
)

// Runtime is an engine bound to an open store.
type Runtime struct {
	Engine engine.Engine
	Config *config.Config
	conn   *sql.DB
}

// Close releases the store connection, if any.
func (r *Runtime) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// Open loads the workspace config (defaults when absent), opens the
// configured store and migrates it.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*Runtime, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(ctx, workspace, cfg, logger)
}

func OpenWithConfig(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg}
	var store engine.Store
	switch cfg.Store.Driver {
	case config.DriverMemory:
		store = memstore.New()
	case config.DriverSQLite:
		conn, err := db.Open(db.Config{Workspace: workspace})
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := migrate.MigrateContext(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		rt.conn = conn
		store = repo.Repo{DB: conn}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	rt.Engine = engine.New(store, cfg)
	rt.Engine.Logger = logger
	logger.Debug("store opened", "driver", cfg.Store.Driver, "workspace", workspace)
	return rt, nil
}
