package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"imagepacks/internal/cache"
	"imagepacks/internal/config"
	"imagepacks/internal/database"
	"imagepacks/internal/repository"
	"imagepacks/internal/service"
	"imagepacks/internal/storage"
)

type blobBackend interface {
	service.BlobStore
	service.SweepStore
}

// deps holds the store handles shared by every command. Close releases them
// in reverse order of opening.
type deps struct {
	inbox   repository.InboxRepository
	blobs   blobBackend
	cache   *redis.Client
	closers []func()
}

func openDeps(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger, withCache bool) (*deps, error) {
	d := &deps{}

	switch cfg.Database.Driver {
	case config.DatabaseDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.inbox = repository.NewPostgresInboxRepository(pool)
	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		d.closers = append(d.closers, func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("sqlite close error")
			}
		})
		d.inbox = repository.NewSQLiteInboxRepository(db)
	}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn().Msg("using in-memory blob store, images are lost on exit")
		d.blobs = storage.NewMemoryStore()
	default:
		store, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init object store: %w", err)
		}
		d.blobs = store
	}

	if withCache {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if client != nil {
			d.cache = client
			d.closers = append(d.closers, func() {
				if err := client.Close(); err != nil {
					logger.Error().Err(err).Msg("redis close error")
				}
			})
		}
	}

	return d, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
