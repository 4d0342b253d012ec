package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/tuition/internal/config"
	"github.com/xraph/tuition/store"
	"github.com/xraph/tuition/store/memory"
	"github.com/xraph/tuition/store/mongo"
	"github.com/xraph/tuition/store/postgres"
)

// openStore connects the configured store driver.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.Store.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMongo:
		s, err := mongo.Connect(cfg.Store.DSN, cfg.Store.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
