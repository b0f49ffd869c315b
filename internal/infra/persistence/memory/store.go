// Package memory provides an in-memory record store. It backs tests and
// ephemeral sessions and is the read model the durable stores hydrate and
// write through.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.Persister       = (*unit)(nil)
)

// ErrClosed is returned by a persister used after Close.
var ErrClosed = errors.New("memory store: persister closed")

// Delta is the net effect of one flush, handed to the commit hook before it
// becomes visible.
type Delta struct {
	Upserts []domain.Record
	Deletes []domain.Ref
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool { return len(d.Upserts) == 0 && len(d.Deletes) == 0 }

// CommitHook writes a delta through to a durable backend. When it fails the
// in-memory state is left untouched.
type CommitHook func(ctx context.Context, delta Delta) error

// Option configures a Store.
type Option func(*Store)

// WithGeneratedIDs makes the store assign ids to added objects, replacing the
// negative placeholder ids the session hands out under the storage id
// strategy.
func WithGeneratedIDs() Option {
	return func(s *Store) { s.generated = true }
}

// WithCommitHook installs a write-through hook.
func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.hook = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Store keeps records per category and id.
type Store struct {
	mu        sync.RWMutex
	records   map[domain.Category]map[int64]domain.Record
	generated bool
	hook      CommitHook
	log       *zap.Logger
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[domain.Category]map[int64]domain.Record),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCommitHook replaces the write-through hook. Durable stores call it once
// while opening.
func (s *Store) SetCommitHook(h CommitHook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

// GeneratesIDs reports whether the store assigns ids to added objects.
func (s *Store) GeneratesIDs() bool { return s.generated }

// Seed inserts records without invoking the commit hook. Durable stores use
// it to hydrate from their backend.
func (s *Store) Seed(records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.put(rec.Clone())
	}
}

func (s *Store) put(rec domain.Record) {
	byID, ok := s.records[rec.Category]
	if !ok {
		byID = make(map[int64]domain.Record)
		s.records[rec.Category] = byID
	}
	byID[rec.ID] = rec
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, byID := range s.records {
		n += len(byID)
	}
	return n
}

// LoadRecords implements domain.PersistentStore. Records are ordered by
// category then id.
func (s *Store) LoadRecords(_ context.Context, categories ...domain.Category) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(categories) == 0 {
		for c := range s.records {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	var out []domain.Record
	for _, c := range categories {
		byID := s.records[c]
		ids := make([]int64, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			out = append(out, byID[id].Clone())
		}
	}
	return out, nil
}

// GetRecord implements domain.PersistentStore.
func (s *Store) GetRecord(_ context.Context, ref domain.Ref) (domain.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[ref.Category][ref.ID]
	if !ok {
		return domain.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// Begin implements domain.PersistentStore.
func (s *Store) Begin(context.Context) (domain.Persister, error) {
	return &unit{store: s}, nil
}

// Close implements domain.PersistentStore.
func (s *Store) Close() error { return nil }

// apply runs the commit hook and then makes delta visible, all under the
// write lock so flushes are serialized.
func (s *Store) apply(ctx context.Context, build func() (Delta, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta, err := build()
	if err != nil {
		return err
	}
	if delta.Empty() {
		return nil
	}
	if s.hook != nil {
		if err := s.hook(ctx, delta); err != nil {
			return fmt.Errorf("write through: %w", err)
		}
	}
	for _, rec := range delta.Upserts {
		s.put(rec)
	}
	for _, ref := range delta.Deletes {
		delete(s.records[ref.Category], ref.ID)
	}
	s.log.Debug("records flushed", zap.Int("upserts", len(delta.Upserts)), zap.Int("deletes", len(delta.Deletes)))
	return nil
}

// nextID returns one past the highest id of category, counting ids already
// handed out in the current flush. Caller holds the write lock.
func (s *Store) nextID(category domain.Category, issued map[domain.Category]int64) int64 {
	if last, ok := issued[category]; ok {
		issued[category] = last + 1
		return last + 1
	}
	var max int64
	for id := range s.records[category] {
		if id > max {
			max = id
		}
	}
	issued[category] = max + 1
	return max + 1
}
