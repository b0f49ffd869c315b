package badger

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

func newObject(category domain.Category, id int64) *domain.GenericObject {
	obj := domain.NewGenericObject(category)
	obj.Tracking().SetID(id)
	obj.SetField("label", "x")
	return obj
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(DefaultConfig(dir))
	require.NoError(t, err)

	p, err := store.Begin(ctx)
	require.NoError(t, err)
	a, b := newObject("box", 1), newObject("box", 2)
	require.NoError(t, p.Save([]domain.Object{a, b}, nil))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, p.Delete([]domain.Object{a}))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, store.Close())

	reopened, err := NewStore(Config{Path: dir, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	recs, err := reopened.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "box/2", recs[0].Key())
}

func TestInMemoryWriteThrough(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(InMemoryConfig())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{newObject("item", 4)}, nil))
	require.NoError(t, p.Flush(ctx))

	err = store.DB().View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("rec/item/4"))
		return err
	})
	assert.NoError(t, err)
}

func TestFailedWriteLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(InMemoryConfig())
	require.NoError(t, err)
	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{newObject("item", 4)}, nil))
	require.NoError(t, store.DB().Close())
	assert.Error(t, p.Flush(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestPathRequired(t *testing.T) {
	_, err := NewStore(Config{})
	assert.Error(t, err)
}

func TestNumericFieldsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(DefaultConfig(dir))
	require.NoError(t, err)
	box := newObject("box", 1)
	box.SetField("qty", int64(9007199254740993))
	box.SetField("ratio", 0.5)
	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{box}, nil))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, store.Close())

	reopened, err := NewStore(DefaultConfig(dir))
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	rec, ok, err := reopened.GetRecord(ctx, domain.Ref{Category: "box", ID: 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), rec.Fields["qty"])
	assert.Equal(t, 0.5, rec.Fields["ratio"])
}
