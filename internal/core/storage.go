package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trackcore/internal/blob"
	"trackcore/internal/infra/persistence/badger"
	blobrecords "trackcore/internal/infra/persistence/blob"
	"trackcore/internal/infra/persistence/memory"
	"trackcore/internal/infra/persistence/postgres"
	"trackcore/internal/infra/persistence/sqlite"
	"trackcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded key-value directory
	StorageBlob     StorageDriver = "blob"     // one JSON object per record in a blob store
)

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	BadgerPath  string
	Blob        blob.Config
	BlobPrefix  string
	// GeneratedIDs makes the store assign ids to new records, as required by
	// IDStrategyStorage.
	GeneratedIDs bool
}

// OpenPersistentStore opens the configured backend and hydrates it. An empty
// driver selects sqlite.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig, log *zap.Logger) (domain.PersistentStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := []memory.Option{memory.WithLogger(log)}
	if cfg.GeneratedIDs {
		opts = append(opts, memory.WithGeneratedIDs())
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	var (
		store domain.PersistentStore
		err   error
	)
	switch driver {
	case StorageMemory:
		store = memory.NewStore(opts...)
	case StorageSQLite:
		store, err = unwrap(sqlite.NewStore(ctx, cfg.SQLitePath, opts...))
	case StoragePostgres:
		store, err = unwrap(postgres.NewStore(ctx, cfg.PostgresDSN, opts...))
	case StorageBadger:
		bc := badger.DefaultConfig(cfg.BadgerPath)
		bc.Logger = log
		store, err = unwrap(badger.NewStore(bc, opts...))
	case StorageBlob:
		blobs, berr := blob.Open(ctx, cfg.Blob)
		if berr != nil {
			return nil, fmt.Errorf("open blob store: %w", berr)
		}
		store, err = unwrap(blobrecords.NewStore(ctx, blobs, cfg.BlobPrefix, log, opts...))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	log.Info("persistent store opened", zap.String("driver", string(driver)))
	return store, nil
}

// unwrap keeps a failed constructor's typed nil out of the interface.
func unwrap[S domain.PersistentStore](store S, err error) (domain.PersistentStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
