package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"musdScope/internal/config"
	"musdScope/internal/store"
	"musdScope/internal/store/leveldb"
	"musdScope/internal/store/postgres"
)

func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("store", config.BackendLevelDB, "entity store backend (memory, leveldb, postgres)")
	fs.String("store-path", "./data/state", "leveldb directory")
	fs.String("pg-dsn", "", "Postgres DSN")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (*store.Store, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		backend = store.NewMemoryBackend()
	case config.BackendLevelDB:
		backend, err = leveldb.Open(cfg.Path)
	case config.BackendPostgres:
		backend, err = postgres.Open(ctx, cfg.PGDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	return store.New(backend), nil
}
