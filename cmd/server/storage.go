package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/ledger/internal/config"
	"github.com/fastygo/ledger/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/ledger/internal/infrastructure/postgres"
	sqliteInfra "github.com/fastygo/ledger/internal/infrastructure/sqlite"
	"github.com/fastygo/ledger/internal/services/lifecycle"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/repository/memory"
	"github.com/fastygo/ledger/repository/postgres"
	"github.com/fastygo/ledger/repository/sqlite"
)

type storage struct {
	events    repository.EventStore
	readModel repository.AccountReadModel
	ping      monitor.PingFunc
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, cfg.AppName, cfg.Context.RequestTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		events := postgres.NewEventStore(pool)
		return &storage{
			events:    events,
			readModel: postgres.NewAccountReadModel(pool),
			ping:      events.Ping,
		}, nil

	case config.DriverSQLite:
		db, err := sqliteInfra.Open(ctx, cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		manager.Register("sqlite", func(ctx context.Context) error {
			return db.Close()
		})
		events := sqlite.NewEventStore(db)
		return &storage{
			events:    events,
			readModel: sqlite.NewAccountReadModel(db),
			ping:      events.Ping,
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		events := memory.NewEventStore()
		return &storage{
			events:    events,
			readModel: memory.NewAccountReadModel(),
			ping:      events.Ping,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
