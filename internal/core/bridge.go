package core

import (
	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

// AddedObjectsChange is the history record of objects created by a commit.
// Redo saves them again; Undo deletes them.
type AddedObjectsChange struct {
	Objects []domain.Object
}

// Redo implements domain.ChangeRecord.
func (c *AddedObjectsChange) Redo() error {
	for _, obj := range c.Objects {
		domain.Save(obj)
	}
	return nil
}

// Undo implements domain.ChangeRecord.
func (c *AddedObjectsChange) Undo() error {
	for _, obj := range c.Objects {
		domain.Delete(obj)
	}
	return nil
}

// RemovedObjectsChange is the history record of objects deleted by a commit.
type RemovedObjectsChange struct {
	Objects []domain.Object
}

// Redo implements domain.ChangeRecord.
func (c *RemovedObjectsChange) Redo() error {
	for _, obj := range c.Objects {
		domain.Delete(obj)
	}
	return nil
}

// Undo implements domain.ChangeRecord.
func (c *RemovedObjectsChange) Undo() error {
	for _, obj := range c.Objects {
		domain.Save(obj)
	}
	return nil
}

// finalize runs after a successful outermost commit. Added objects enter the
// identity map. With a changeset open every touched object is pinned and the
// changeset is sealed, creations first and removals last. Removed objects
// then leave the map regardless of pins, return their ids and lose them.
func (s *Session) finalize(sc *Scope, added, updated, removed []domain.Object) {
	s.objects.Add(added)

	if cs := sc.changeset; cs != nil {
		touched := make([]domain.Object, 0, len(added)+len(updated)+len(removed))
		touched = append(touched, added...)
		touched = append(touched, updated...)
		touched = append(touched, removed...)
		cs.Pin(touched...)
		s.metrics.Add(CounterPins, int64(len(touched)))
		if len(added) > 0 {
			cs.InsertFront(&AddedObjectsChange{Objects: added})
		}
		if len(removed) > 0 {
			cs.Append(&RemovedObjectsChange{Objects: removed})
		}
		if err := s.history.Commit(); err != nil {
			s.log.Error("history commit failed", zap.String("description", sc.description), zap.Error(err))
		}
		sc.changeset = nil
		// later changes in the same scope go to a fresh changeset
		sc.openChangeset()
	}

	if len(removed) > 0 {
		s.objects.Drop(removed, true)
	}
	for _, obj := range removed {
		s.reclaimID(obj)
		obj.Tracking().SetID(0)
	}
}
