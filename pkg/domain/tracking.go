// Package domain defines the contracts shared by the tracking core and the
// collaborators plugged into it: tracked objects, persisted records, stores,
// history and change notifications.
package domain

// Category names an identifier namespace and the record shape stored under it.
type Category string

// State describes the persistence lifecycle of a tracked object.
type State int

const (
	// StateNew marks an object that has never been persisted.
	StateNew State = iota
	// StateSynced marks an object whose in-memory fields match storage.
	StateSynced
	// StateDeleted marks an object that has been removed from storage.
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateSynced:
		return "synced"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Tracker receives change notifications from tracked objects. The session
// implements it; objects reach it through their embedded Tracking value.
type Tracker interface {
	MarkDirty(Object)
	MarkRemoved(Object)
	CancelPendingChange(Object)
}

// Tracking carries the bookkeeping every tracked object needs. Keep one as a
// field and return a pointer to it from Object.Tracking.
//
// An id of 0 means unassigned.
type Tracking struct {
	id       int64
	state    State
	hardRefs int
	tracker  Tracker
}

// ID returns the object's identifier within its category.
func (t *Tracking) ID() int64 { return t.id }

// SetID assigns the identifier. Only the tracking core should call it.
func (t *Tracking) SetID(id int64) { t.id = id }

// State returns the persistence state.
func (t *Tracking) State() State { return t.state }

// SetState records the persistence state.
func (t *Tracking) SetState(s State) { t.state = s }

// Tracker returns the tracker the object reports to, or nil when detached.
func (t *Tracking) Tracker() Tracker { return t.tracker }

// Attach binds the object to a tracker.
func (t *Tracking) Attach(tr Tracker) { t.tracker = tr }

// HardReferenceCount returns the number of history pins held on the object.
func (t *Tracking) HardReferenceCount() int { return t.hardRefs }

// AddHardReference pins the object so eviction leaves it alone.
func (t *Tracking) AddHardReference() { t.hardRefs++ }

// ReleaseHardReference drops one pin. It reports false and leaves the count
// at zero when there was nothing to release.
func (t *Tracking) ReleaseHardReference() bool {
	if t.hardRefs == 0 {
		return false
	}
	t.hardRefs--
	return true
}

// Pinned reports whether any history record still references the object.
func (t *Tracking) Pinned() bool { return t.hardRefs > 0 }

// Save reports obj as new or modified to its tracker.
func Save(obj Object) {
	if tr := obj.Tracking().Tracker(); tr != nil {
		tr.MarkDirty(obj)
	}
}

// Delete reports obj as removed to its tracker.
func Delete(obj Object) {
	if tr := obj.Tracking().Tracker(); tr != nil {
		tr.MarkRemoved(obj)
	}
}

// Revert withdraws any pending change for obj in the active scope.
func Revert(obj Object) {
	if tr := obj.Tracking().Tracker(); tr != nil {
		tr.CancelPendingChange(obj)
	}
}
