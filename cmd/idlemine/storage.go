package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/udisondev/idlemine/internal/config"
	"github.com/udisondev/idlemine/internal/db"
	"github.com/udisondev/idlemine/internal/db/memory"
	"github.com/udisondev/idlemine/internal/db/sqlite"
	"github.com/udisondev/idlemine/internal/game/skill"
	"github.com/udisondev/idlemine/internal/gameserver"
)

// storage is a skill store that also keeps player accounts.
type storage interface {
	skill.Store
	gameserver.AccountStore
}

// openStorage opens the configured backend with migrations applied.
// The returned func releases it.
func openStorage(ctx context.Context, cfg config.Server) (storage, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := db.RunMigrations(ctx, dsn); err != nil {
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		slog.Info("database migrations applied")

		database, err := db.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		slog.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.DBName)
		return database, database.Close, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("sqlite storage opened", "path", cfg.Storage.SQLitePath)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing sqlite storage", "error", err)
			}
		}, nil

	case config.DriverMemory:
		slog.Warn("using in-memory storage, progress is lost on exit")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
