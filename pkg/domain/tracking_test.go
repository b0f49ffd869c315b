package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTracker struct {
	dirty, removed, reverted []Object
}

func (r *recordingTracker) MarkDirty(o Object)           { r.dirty = append(r.dirty, o) }
func (r *recordingTracker) MarkRemoved(o Object)         { r.removed = append(r.removed, o) }
func (r *recordingTracker) CancelPendingChange(o Object) { r.reverted = append(r.reverted, o) }

func TestHardReferencesNeverGoNegative(t *testing.T) {
	var tr Tracking
	assert.False(t, tr.ReleaseHardReference())
	assert.Equal(t, 0, tr.HardReferenceCount())

	tr.AddHardReference()
	tr.AddHardReference()
	assert.True(t, tr.Pinned())
	assert.True(t, tr.ReleaseHardReference())
	assert.True(t, tr.ReleaseHardReference())
	assert.False(t, tr.ReleaseHardReference())
	assert.False(t, tr.Pinned())
}

func TestSaveDeleteRevertRouteToTracker(t *testing.T) {
	obj := NewGenericObject("sample")
	// detached objects are ignored
	Save(obj)
	Delete(obj)

	rec := &recordingTracker{}
	obj.Tracking().Attach(rec)
	Save(obj)
	Delete(obj)
	Revert(obj)
	require.Len(t, rec.dirty, 1)
	require.Len(t, rec.removed, 1)
	require.Len(t, rec.reverted, 1)
	assert.Same(t, obj, rec.dirty[0])
}

func TestStateString(t *testing.T) {
	cases := map[State]string{StateNew: "new", StateSynced: "synced", StateDeleted: "deleted", State(9): "unknown"}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
