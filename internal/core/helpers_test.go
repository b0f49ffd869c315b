package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"trackcore/internal/infra/persistence/memory"
	"trackcore/pkg/domain"
)

// spyStore records what the session hands to its persisters.
type spyStore struct {
	*memory.Store
	added    [][]domain.Object
	updated  [][]domain.Object
	deleted  [][]domain.Object
	flushes  int
	closes   int
	flushErr error
}

func newSpyStore(opts ...memory.Option) *spyStore {
	return &spyStore{Store: memory.NewStore(opts...)}
}

func (s *spyStore) Begin(ctx context.Context) (domain.Persister, error) {
	p, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &spyPersister{Persister: p, store: s}, nil
}

type spyPersister struct {
	domain.Persister
	store *spyStore
}

func (p *spyPersister) Save(added, updated []domain.Object) error {
	p.store.added = append(p.store.added, added)
	p.store.updated = append(p.store.updated, updated)
	return p.Persister.Save(added, updated)
}

func (p *spyPersister) Delete(removed []domain.Object) error {
	p.store.deleted = append(p.store.deleted, removed)
	return p.Persister.Delete(removed)
}

func (p *spyPersister) Flush(ctx context.Context) error {
	p.store.flushes++
	if p.store.flushErr != nil {
		return p.store.flushErr
	}
	return p.Persister.Flush(ctx)
}

func (p *spyPersister) Close() error {
	p.store.closes++
	return p.Persister.Close()
}

func newTestRegistry() *domain.Registry {
	reg := domain.NewRegistry()
	reg.RegisterGeneric("box", "shelf")
	return reg
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *spyStore) {
	t.Helper()
	store := newSpyStore()
	return NewSession(store, newTestRegistry(), opts...), store
}

func newBox(t *testing.T, s *Session, label string) *domain.GenericObject {
	t.Helper()
	return newGeneric(t, s, "box", label)
}

func newGeneric(t *testing.T, s *Session, category domain.Category, label string) *domain.GenericObject {
	t.Helper()
	obj, err := s.New(category)
	require.NoError(t, err)
	g := obj.(*domain.GenericObject)
	g.SetField("label", label)
	return g
}

func begin(t *testing.T, s *Session, description string) *Scope {
	t.Helper()
	sc, err := s.Begin(context.Background(), description)
	require.NoError(t, err)
	return sc
}

// loadBoxes seeds the store with one box per id and loads them.
func loadBoxes(t *testing.T, s *Session, store *spyStore, ids ...int64) []*domain.GenericObject {
	t.Helper()
	recs := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, domain.Record{Category: "box", ID: id, Fields: map[string]any{"label": "seed"}})
	}
	store.Seed(recs)
	_, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	out := make([]*domain.GenericObject, 0, len(ids))
	for _, id := range ids {
		obj, ok := s.Objects().TryGet("box", id)
		require.True(t, ok)
		out = append(out, obj.(*domain.GenericObject))
	}
	return out
}

func commitAndClose(t *testing.T, sc *Scope) {
	t.Helper()
	require.NoError(t, sc.Commit(context.Background()))
	require.NoError(t, sc.Close())
}
