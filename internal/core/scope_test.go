package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trackcore/pkg/domain"
)

func TestNestedUpdateOfAddedObjectStaysAdded(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)

	outer := begin(t, s, "outer")
	o1 := newBox(t, s, "one")
	domain.Save(o1)
	assert.Equal(t, int64(1), o1.Tracking().ID())

	inner := begin(t, s, "inner")
	domain.Save(o1)
	assert.Equal(t, []domain.Object{o1}, inner.Updated())
	require.NoError(t, inner.Commit(ctx))
	assert.True(t, inner.MergePending())
	assert.Zero(t, store.flushes)
	require.NoError(t, inner.Close())

	assert.Equal(t, []domain.Object{o1}, outer.Added())
	assert.Empty(t, outer.Updated())

	commitAndClose(t, outer)
	require.Len(t, store.added, 1)
	assert.Equal(t, []domain.Object{o1}, store.added[0])
	assert.Empty(t, store.updated[0])
	_, ok, err := store.GetRecord(ctx, domain.Ref{Category: "box", ID: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.StateSynced, o1.Tracking().State())
}

func TestUncommittedInnerScopeIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)
	o2 := loadBoxes(t, s, store, 5)[0]

	outer := begin(t, s, "outer")
	domain.Delete(o2)
	inner := begin(t, s, "inner")
	domain.Save(o2)
	assert.Equal(t, []domain.Object{o2}, inner.Updated())
	require.NoError(t, inner.Close())

	assert.Equal(t, []domain.Object{o2}, outer.Removed())
	commitAndClose(t, outer)

	require.Len(t, store.deleted, 1)
	assert.Equal(t, []domain.Object{o2}, store.deleted[0])
	assert.Zero(t, o2.Tracking().ID())
	assert.Equal(t, domain.StateDeleted, o2.Tracking().State())
	_, ok := s.Objects().TryGet("box", 5)
	assert.False(t, ok)
	assert.True(t, s.Allocators().For("box").IsFree(5))
	_, ok, err := store.GetRecord(ctx, domain.Ref{Category: "box", ID: 5})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangeReportsWithinOneScope(t *testing.T) {
	s, store := newTestSession(t)
	loaded := loadBoxes(t, s, store, 3, 4, 8)
	sc := begin(t, s, "edit")
	defer sc.Close()

	// added then removed nets to nothing
	fresh := newBox(t, s, "tmp")
	domain.Save(fresh)
	domain.Delete(fresh)
	assert.Empty(t, sc.Added())
	assert.Empty(t, sc.Removed())

	// removed then saved cancels the removal without recording an update
	domain.Delete(loaded[0])
	domain.Save(loaded[0])
	assert.Empty(t, sc.Removed())
	assert.Empty(t, sc.Updated())

	// repeated saves are idempotent
	domain.Save(loaded[1])
	domain.Save(loaded[1])
	assert.Equal(t, []domain.Object{loaded[1]}, sc.Updated())

	// a removal supersedes an update
	domain.Delete(loaded[1])
	assert.Empty(t, sc.Updated())
	assert.Equal(t, []domain.Object{loaded[1]}, sc.Removed())

	// removing an object that was never stored does nothing
	domain.Delete(newBox(t, s, "ghost"))
	assert.Len(t, sc.Removed(), 1)

	domain.Save(loaded[2])
	domain.Revert(loaded[2])
	domain.Revert(loaded[1])
	assert.True(t, sc.Empty())
}

func TestUpdatedAndRemovedKeepInsertionOrder(t *testing.T) {
	s, store := newTestSession(t)
	loaded := loadBoxes(t, s, store, 9, 2, 7)
	sc := begin(t, s, "order")
	defer sc.Close()
	for _, obj := range []domain.Object{loaded[2], loaded[0], loaded[1]} {
		domain.Save(obj)
	}
	assert.Equal(t, []domain.Object{loaded[2], loaded[0], loaded[1]}, sc.Updated())
}

func TestMergeAlgebra(t *testing.T) {
	type setup func(sc *Scope, x domain.Object)
	none := func(*Scope, domain.Object) {}
	inAdded := func(sc *Scope, x domain.Object) { sc.added.add(x) }
	inUpdated := func(sc *Scope, x domain.Object) { sc.updated.add(x) }
	inRemoved := func(sc *Scope, x domain.Object) { sc.removed.add(x) }

	cases := []struct {
		name                    string
		parent, child           setup
		added, updated, removed bool
	}{
		{"added in child cancels removal in parent", inRemoved, inAdded, true, false, false},
		{"added in child", none, inAdded, true, false, false},
		{"updated in child revives removal in parent", inRemoved, inUpdated, false, false, false},
		{"updated in child of object added in parent", inAdded, inUpdated, true, false, false},
		{"updated in child", none, inUpdated, false, true, false},
		{"updated in both", inUpdated, inUpdated, false, true, false},
		{"removed in child cancels addition in parent", inAdded, inRemoved, false, false, false},
		{"removed in child of object updated in parent", inUpdated, inRemoved, false, false, true},
		{"removed in child", none, inRemoved, false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			x := newBox(t, s, "x")
			x.Tracking().SetID(7)

			parent := begin(t, s, "parent")
			tc.parent(parent, x)
			child := begin(t, s, "child")
			tc.child(child, x)
			commitAndClose(t, child)

			assert.Equal(t, tc.added, parent.added.has(x), "added")
			assert.Equal(t, tc.updated, parent.updated.has(x), "updated")
			assert.Equal(t, tc.removed, parent.removed.has(x), "removed")
			require.NoError(t, parent.Close())
		})
	}
}

func TestScopeOrderingRules(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)
	outer := begin(t, s, "outer")
	inner := begin(t, s, "inner")

	assert.ErrorIs(t, outer.Commit(ctx), domain.ErrScopeNotCurrent)
	assert.ErrorIs(t, outer.Close(), domain.ErrScopeNotCurrent)
	assert.Equal(t, 2, s.Depth())
	assert.Same(t, inner, s.Current())
	assert.Equal(t, 2, inner.Depth())
	assert.False(t, inner.Outermost())

	require.NoError(t, inner.Close())
	require.NoError(t, inner.Close())
	assert.ErrorIs(t, inner.Commit(ctx), domain.ErrScopeClosed)
	assert.True(t, inner.Closed())

	require.NoError(t, outer.Close())
	assert.Nil(t, s.Current())
}

func TestEmptyCommitFlushesOnlyWhenForced(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)
	sc := begin(t, s, "noop")
	require.NoError(t, sc.Commit(ctx))
	assert.Zero(t, store.flushes)

	sc.SetForceSave(true)
	require.NoError(t, sc.Commit(ctx))
	assert.Equal(t, 1, store.flushes)
	require.NoError(t, sc.Close())
	assert.Equal(t, 1, store.closes)
}

func TestFailedFlushLeavesScopeIntact(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)
	store.flushErr = errors.New("disk full")

	sc := begin(t, s, "add")
	box := newBox(t, s, "b")
	domain.Save(box)
	err := sc.Commit(ctx)
	require.ErrorIs(t, err, store.flushErr)

	assert.Equal(t, []domain.Object{box}, sc.Added())
	assert.False(t, box.Tracking().Pinned())
	assert.Equal(t, domain.StateNew, box.Tracking().State())
	assert.Zero(t, s.Objects().Len())

	store.flushErr = nil
	commitAndClose(t, sc)
	assert.Equal(t, domain.StateSynced, box.Tracking().State())
	assert.True(t, box.Tracking().Pinned())
	assert.True(t, s.CanUndo())
	assert.Equal(t, 1, store.Len())
}

func TestCommitAsync(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t)
	sc := begin(t, s, "async")
	domain.Save(newBox(t, s, "b"))

	require.NoError(t, <-sc.CommitAsync(ctx))
	require.NoError(t, sc.Close())
	assert.Equal(t, 1, store.Len())

	nested := begin(t, s, "outer")
	inner := begin(t, s, "inner")
	require.NoError(t, <-inner.CommitAsync(ctx))
	assert.True(t, inner.MergePending())
	require.NoError(t, inner.Close())
	require.NoError(t, nested.Close())
}

func TestChangesOutsideScopeAreIgnored(t *testing.T) {
	s, store := newTestSession(t)
	loaded := loadBoxes(t, s, store, 1)[0]
	domain.Save(loaded)
	domain.Delete(loaded)
	domain.Save(newBox(t, s, "orphan"))

	sc := begin(t, s, "after")
	defer sc.Close()
	assert.True(t, sc.Empty())
	assert.Equal(t, int64(1), loaded.Tracking().ID())
}

func TestSuppressedModeOnlySyncs(t *testing.T) {
	s, _ := newTestSession(t)
	sc := begin(t, s, "bulk")
	defer sc.Close()

	s.SetSuppressed(true)
	assert.True(t, s.Suppressed())
	box := newBox(t, s, "b")
	domain.Save(box)
	domain.Delete(box)
	domain.Revert(box)
	assert.True(t, sc.Empty())
	assert.Zero(t, box.Tracking().ID())
	assert.Equal(t, domain.StateSynced, box.Tracking().State())
}
