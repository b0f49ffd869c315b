package history

import "trackcore/pkg/domain"

// FieldSetter is an object whose scalar fields can be read and assigned by
// name. Assigning nil clears a field.
type FieldSetter interface {
	domain.Object
	Field(name string) (any, bool)
	SetField(name string, value any)
}

// FieldEdit records one scalar assignment. Replaying it in either direction
// reports the target dirty so the value is persisted again.
type FieldEdit struct {
	Target FieldSetter
	Field  string
	Before any
	After  any
}

// Redo implements domain.ChangeRecord.
func (e *FieldEdit) Redo() error {
	e.Target.SetField(e.Field, e.After)
	domain.Save(e.Target)
	return nil
}

// Undo implements domain.ChangeRecord.
func (e *FieldEdit) Undo() error {
	e.Target.SetField(e.Field, e.Before)
	domain.Save(e.Target)
	return nil
}
