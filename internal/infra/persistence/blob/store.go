// Package blob persists each record as a JSON document in a blob store
// (filesystem, S3 or memory).
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	blobcore "trackcore/internal/blob/core"
	"trackcore/internal/infra/persistence/memory"
	"trackcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	// DefaultPrefix is the key prefix used when none is configured.
	DefaultPrefix = "records/"
	contentType   = "application/json"
)

// Store writes each record to <prefix><category>/<id>.json. Blob stores have
// no transactions, so a failed flush restores the blobs it already touched
// before reporting the error.
type Store struct {
	*memory.Store
	blobs  blobcore.Store
	prefix string
	log    *zap.Logger
}

// NewStore lists every record under prefix and hydrates the in-memory copy.
func NewStore(ctx context.Context, blobs blobcore.Store, prefix string, log *zap.Logger, opts ...memory.Option) (*Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{Store: memory.NewStore(opts...), blobs: blobs, prefix: prefix, log: log}
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.Seed(records)
	s.SetCommitHook(s.persist)
	return s, nil
}

func (s *Store) key(ref domain.Ref) string {
	return s.prefix + string(ref.Category) + "/" + strconv.FormatInt(ref.ID, 10) + ".json"
}

func (s *Store) load(ctx context.Context) ([]domain.Record, error) {
	infos, err := s.blobs.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.prefix, err)
	}
	out := make([]domain.Record, 0, len(infos))
	for _, info := range infos {
		if !strings.HasSuffix(info.Key, ".json") {
			continue
		}
		data, found, err := s.read(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		rec, err := domain.DecodeRecord(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", info.Key, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool, error) {
	_, rc, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blobcore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, true, nil
}

// undo restores one blob to its state before the flush.
type undo struct {
	key     string
	prev    []byte
	existed bool
}

func (s *Store) persist(ctx context.Context, delta memory.Delta) error {
	var applied []undo
	fail := func(err error) error {
		s.rollback(ctx, applied)
		return err
	}
	for _, rec := range delta.Upserts {
		key := s.key(rec.Ref())
		data, err := domain.EncodeRecord(rec)
		if err != nil {
			return fail(fmt.Errorf("encode %s: %w", rec.Key(), err))
		}
		prev, existed, err := s.read(ctx, key)
		if err != nil {
			return fail(err)
		}
		if _, err := s.blobs.Put(ctx, key, bytes.NewReader(data), blobcore.PutOptions{ContentType: contentType}); err != nil {
			return fail(fmt.Errorf("put %s: %w", key, err))
		}
		applied = append(applied, undo{key: key, prev: prev, existed: existed})
	}
	for _, ref := range delta.Deletes {
		key := s.key(ref)
		prev, existed, err := s.read(ctx, key)
		if err != nil {
			return fail(err)
		}
		if !existed {
			continue
		}
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			return fail(fmt.Errorf("delete %s: %w", key, err))
		}
		applied = append(applied, undo{key: key, prev: prev, existed: true})
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, applied []undo) {
	for i := len(applied) - 1; i >= 0; i-- {
		u := applied[i]
		var err error
		if u.existed {
			_, err = s.blobs.Put(ctx, u.key, bytes.NewReader(u.prev), blobcore.PutOptions{ContentType: contentType})
		} else {
			_, err = s.blobs.Delete(ctx, u.key)
		}
		if err != nil {
			s.log.Error("blob rollback failed", zap.String("key", u.key), zap.Error(err))
		}
	}
}

// Blobs returns the underlying blob store.
func (s *Store) Blobs() blobcore.Store { return s.blobs }
