package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackcore/internal/infra/persistence/memory"
	"trackcore/pkg/domain"
)

func newObject(category domain.Category, id int64, label string) *domain.GenericObject {
	obj := domain.NewGenericObject(category)
	obj.Tracking().SetID(id)
	obj.SetField("label", label)
	return obj
}

func TestStoreRoundTripsThroughReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "records.db")
	store, err := NewStore(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	box := newObject("box", 1, "A")
	item := newObject("item", 1, "bolt")
	item.SetLinks("box", box)
	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{box, item}, nil))
	require.NoError(t, p.Flush(ctx))

	box.SetField("label", "B")
	require.NoError(t, p.Save(nil, []domain.Object{box}))
	require.NoError(t, p.Delete([]domain.Object{item}))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, p.Close())

	var rows int
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM tracked_records`).Scan(&rows))
	assert.Equal(t, 1, rows)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	recs, err := reopened.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "box/1", recs[0].Key())
	assert.Equal(t, "B", recs[0].Fields["label"])
}

func TestGeneratedIDsPersist(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gen.db")
	store, err := NewStore(ctx, path, memory.WithGeneratedIDs())
	require.NoError(t, err)
	obj := newObject("box", -1, "A")
	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{obj}, nil))
	require.NoError(t, p.Flush(ctx))
	id, ok := p.ResolvedID(obj)
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	_, found, err := reopened.GetRecord(ctx, domain.Ref{Category: "box", ID: 1})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestFailedWriteLeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "fail.db"))
	require.NoError(t, err)
	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{newObject("box", 1, "A")}, nil))
	require.NoError(t, store.DB().Close())

	assert.Error(t, p.Flush(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestNumericFieldsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "numbers.db")
	store, err := NewStore(ctx, path)
	require.NoError(t, err)
	box := newObject("box", 1, "A")
	box.SetField("qty", int64(9007199254740993))
	box.SetField("ratio", 0.5)
	p, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Save([]domain.Object{box}, nil))
	require.NoError(t, p.Flush(ctx))
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	rec, ok, err := reopened.GetRecord(ctx, domain.Ref{Category: "box", ID: 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), rec.Fields["qty"])
	assert.Equal(t, 0.5, rec.Fields["ratio"])
}
