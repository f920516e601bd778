package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/kvstore"
	"github.com/unkn0wn-root/kvstore/backend/bigcache"
	"github.com/unkn0wn-root/kvstore/backend/filesystem"
	"github.com/unkn0wn-root/kvstore/backend/memory"
	"github.com/unkn0wn-root/kvstore/backend/redis"
	"github.com/unkn0wn-root/kvstore/backend/ristretto"
	"github.com/unkn0wn-root/kvstore/backend/sqlite"
	"github.com/unkn0wn-root/kvstore/internal/config"
)

// open builds the configured backend and returns a connected store.
func open(ctx context.Context, cfg *config.Config, logger kvstore.Logger) (*kvstore.Store, error) {
	be, err := newBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Backend, err)
	}
	merge, err := mergePolicy(cfg.Merge)
	if err != nil {
		return nil, err
	}
	s, err := kvstore.New(kvstore.Options{Backend: be, Merge: merge, Logger: logger})
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		_ = s.Destroy(ctx)
		return nil, fmt.Errorf("connect %s: %w", cfg.Backend, err)
	}
	return s, nil
}

func newBackend(cfg *config.Config, logger kvstore.Logger) (kvstore.Backend, error) {
	mode, ok := kvstore.ParseConflictMode(cfg.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown merge_mode %q", cfg.Mode)
	}
	switch cfg.Backend {
	case "memory":
		return memory.New(memory.Config{Mode: mode}), nil
	case "filesystem":
		return filesystem.New(filesystem.Config{
			Dir:    cfg.Filesystem.Dir,
			Mode:   mode,
			Create: cfg.Filesystem.Create,
			Sync:   cfg.Filesystem.Sync,
			Logger: logger,
		})
	case "sqlite":
		return sqlite.New(sqlite.Config{Path: cfg.SQLite.Path, Mode: mode, Logger: logger})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redis.New(redis.Config{
			Client:      rdb,
			CloseClient: true,
			Namespace:   cfg.Redis.Namespace,
			Mode:        mode,
			MaxRetries:  cfg.Redis.MaxRetries,
			Logger:      logger,
		})
	case "bigcache":
		return bigcache.New(bigcache.Config{
			LifeWindow:         cfg.Bigcache.LifeWindow.Duration,
			CleanWindow:        cfg.Bigcache.CleanWindow.Duration,
			MaxEntriesInWindow: cfg.Bigcache.MaxEntriesInWindow,
			MaxEntrySize:       cfg.Bigcache.MaxEntrySize,
			HardMaxCacheSizeMB: cfg.Bigcache.HardMaxCacheSizeMB,
			Mode:               mode,
			Logger:             logger,
		})
	case "ristretto":
		return ristretto.New(ristretto.Config{
			NumCounters: cfg.Ristretto.NumCounters,
			MaxCost:     cfg.Ristretto.MaxCost,
			BufferItems: cfg.Ristretto.BufferItems,
			Metrics:     cfg.Ristretto.Metrics,
		})
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func mergePolicy(name string) (kvstore.MergePolicy, error) {
	switch name {
	case "", "first":
		return kvstore.FirstWins, nil
	case "last":
		return kvstore.LastWins, nil
	case "newest":
		return kvstore.Newest, nil
	}
	return nil, fmt.Errorf("unknown merge policy %q", name)
}
