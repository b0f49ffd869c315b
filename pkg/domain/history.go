package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeRecord is one undoable step in a changeset.
type ChangeRecord interface {
	Redo() error
	Undo() error
}

// Changeset groups the change records produced by one outermost scope.
type Changeset struct {
	ID          uuid.UUID
	Description string
	CreatedAt   time.Time
	Records     []ChangeRecord
	// Pinned lists objects holding a hard reference on behalf of this
	// changeset. ReleasePins drops them once the changeset leaves history.
	Pinned []Object
}

// NewChangeset returns an empty changeset with a fresh id.
func NewChangeset(description string) *Changeset {
	return &Changeset{ID: uuid.New(), Description: description, CreatedAt: time.Now().UTC()}
}

// InsertFront places a record so it is redone first and undone last.
func (c *Changeset) InsertFront(r ChangeRecord) {
	c.Records = append([]ChangeRecord{r}, c.Records...)
}

// Append places a record so it is redone last and undone first.
func (c *Changeset) Append(r ChangeRecord) {
	c.Records = append(c.Records, r)
}

// Pin takes a hard reference on each object for the changeset's lifetime.
func (c *Changeset) Pin(objects ...Object) {
	for _, obj := range objects {
		obj.Tracking().AddHardReference()
		c.Pinned = append(c.Pinned, obj)
	}
}

// ReleasePins drops every hard reference taken through Pin and reports how
// many were released.
func (c *Changeset) ReleasePins() int {
	n := 0
	for _, obj := range c.Pinned {
		if obj.Tracking().ReleaseHardReference() {
			n++
		}
	}
	c.Pinned = nil
	return n
}

// Len returns the number of records.
func (c *Changeset) Len() int { return len(c.Records) }

// HistoryStore owns the undo/redo history.
type HistoryStore interface {
	// StartChangeset opens a changeset; records are collected into it until
	// Commit or Abandon.
	StartChangeset(description string) *Changeset
	// CommittingChangeset returns the open changeset or nil.
	CommittingChangeset() *Changeset
	Commit() error
	Abandon()
	Undo() error
	Redo() error
	CanUndo() bool
	CanRedo() bool
	// TrackingEnabled reports whether new changes are recorded at all.
	TrackingEnabled() bool
}
