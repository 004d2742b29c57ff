package main

import (
	"context"
	"fmt"
	"io"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/internal/storage"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// stateBackend is the storage and event wiring chosen by STOREFRONT_STORAGE_DRIVER.
type stateBackend struct {
	kv        storage.KV
	bus       events.Bus
	readiness map[string]controllers.Pinger
	closers   []io.Closer
}

func openStateBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*stateBackend, error) {
	driver := cfg.Storage.NormalizedDriver()
	out := &stateBackend{readiness: map[string]controllers.Pinger{}}

	switch driver {
	case config.StorageDriverMemory:
		out.kv = storage.NewMemory()
		out.bus = events.NewHub()

	case config.StorageDriverRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		out.kv = storage.NewRedis(client, cfg.Redis.KeyTTL)
		out.bus = events.NewRedisBus(client)
		out.readiness["redis"] = client
		out.closers = append(out.closers, client)

	case config.StorageDriverPostgres, config.StorageDriverSQLite:
		client, err := db.New(ctx, driver, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		out.closers = append(out.closers, client)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		out.kv = storage.NewSQL(client)
		// SQL drivers have no pub/sub here; cart events stay in-process.
		out.bus = events.NewHub()
		out.readiness["database"] = client

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}

	logg.Info(logg.WithField(ctx, "driver", driver), "storage backend ready")
	return out, nil
}
