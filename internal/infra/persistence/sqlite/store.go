// Package sqlite persists records to a single SQLite table, one row per
// record, and serves reads from an in-memory copy.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"trackcore/internal/infra/persistence/memory"
	"trackcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "trackcore.db"

// Store writes every flush through to SQLite inside one transaction before
// the in-memory copy is updated.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the database at path and hydrates the
// in-memory copy from it.
func NewStore(ctx context.Context, path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tracked_records (
		record_key TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		id INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	s := &Store{Store: memory.NewStore(opts...), db: db, path: path}
	records, err := s.load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.Seed(records)
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) load(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record_key, payload FROM tracked_records`)
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Record
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		rec, err := domain.DecodeRecord(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func (s *Store) persist(ctx context.Context, delta memory.Delta) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, rec := range delta.Upserts {
		data, err := domain.EncodeRecord(rec)
		if err != nil {
			return fmt.Errorf("encode %s: %w", rec.Key(), err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tracked_records(record_key,category,id,payload) VALUES(?,?,?,?)
			ON CONFLICT(record_key) DO UPDATE SET payload=excluded.payload`, rec.Key(), string(rec.Category), rec.ID, data); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.Key(), err)
		}
	}
	for _, ref := range delta.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracked_records WHERE record_key = ?`, ref.String()); err != nil {
			return fmt.Errorf("delete %s: %w", ref, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
