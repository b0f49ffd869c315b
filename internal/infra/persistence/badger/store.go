// Package badger persists records in an embedded Badger key-value store.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"trackcore/internal/infra/persistence/memory"
	"trackcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const keyPrefix = "rec/"

// Config configures the Badger database.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps everything in memory; used by tests.
	InMemory bool
	// SyncWrites fsyncs every transaction.
	SyncWrites bool
	// Logger receives Badger's internal log lines. Nil silences them.
	Logger *zap.Logger
}

// DefaultConfig returns durable settings for path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns settings for an ephemeral database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store writes each flush through in one Badger transaction.
type Store struct {
	*memory.Store
	db *badger.DB
}

type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.log.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }

// NewStore opens the database and hydrates the in-memory copy from it.
func NewStore(cfg Config, opts ...memory.Option) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}
	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		bopts = badger.DefaultOptions(cfg.Path)
	}
	bopts = bopts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{log: cfg.Logger.Named("badger").Sugar()})
	} else {
		bopts = bopts.WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	records, err := load(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{Store: memory.NewStore(opts...), db: db}
	s.Seed(records)
	s.SetCommitHook(s.persist)
	return s, nil
}

func load(db *badger.DB) ([]domain.Record, error) {
	var out []domain.Record
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: []byte(keyPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				rec, err := domain.DecodeRecord(val)
				if err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return out, nil
}

func recordKey(ref domain.Ref) []byte {
	return []byte(keyPrefix + ref.String())
}

func (s *Store) persist(_ context.Context, delta memory.Delta) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, rec := range delta.Upserts {
			data, err := domain.EncodeRecord(rec)
			if err != nil {
				return fmt.Errorf("encode %s: %w", rec.Key(), err)
			}
			if err := txn.Set(recordKey(rec.Ref()), data); err != nil {
				return fmt.Errorf("set %s: %w", rec.Key(), err)
			}
		}
		for _, ref := range delta.Deletes {
			if err := txn.Delete(recordKey(ref)); err != nil {
				return fmt.Errorf("delete %s: %w", ref, err)
			}
		}
		return nil
	})
}

// DB exposes the underlying database for tests.
func (s *Store) DB() *badger.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
