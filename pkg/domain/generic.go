package domain

import (
	"fmt"
	"sort"
)

// GenericObject is a record-backed object with free-form fields and named
// links. It serves categories that need no behavior of their own.
type GenericObject struct {
	tracking Tracking
	category Category
	fields   map[string]any
	links    map[string][]Object
	dangling map[string][]Ref
}

var _ Object = (*GenericObject)(nil)

// NewGenericObject returns an empty object of the category.
func NewGenericObject(category Category) *GenericObject {
	return &GenericObject{
		category: category,
		fields:   make(map[string]any),
		links:    make(map[string][]Object),
	}
}

// Tracking implements Object.
func (o *GenericObject) Tracking() *Tracking { return &o.tracking }

// Category implements Object.
func (o *GenericObject) Category() Category { return o.category }

// Field returns a scalar field.
func (o *GenericObject) Field(name string) (any, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// SetField assigns a scalar field without reporting the change. Use
// Session.EditField for a recorded, undoable edit.
func (o *GenericObject) SetField(name string, value any) {
	if value == nil {
		delete(o.fields, name)
		return
	}
	o.fields[name] = value
}

// FieldNames lists the field names in lexical order.
func (o *GenericObject) FieldNames() []string {
	names := make([]string, 0, len(o.fields))
	for k := range o.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Links returns the objects linked under name.
func (o *GenericObject) Links(name string) []Object {
	return append([]Object(nil), o.links[name]...)
}

// SetLinks replaces the objects linked under name.
func (o *GenericObject) SetLinks(name string, targets ...Object) {
	if len(targets) == 0 {
		delete(o.links, name)
		return
	}
	o.links[name] = append([]Object(nil), targets...)
}

// Dangling returns references that could not be resolved when the object was
// loaded.
func (o *GenericObject) Dangling(name string) []Ref {
	return append([]Ref(nil), o.dangling[name]...)
}

// ExportRecord implements Object.
func (o *GenericObject) ExportRecord() (Record, error) {
	rec := Record{Category: o.category, ID: o.tracking.ID()}
	if len(o.fields) > 0 {
		rec.Fields = make(map[string]any, len(o.fields))
		for k, v := range o.fields {
			rec.Fields[k] = v
		}
	}
	for name, targets := range o.links {
		for _, target := range targets {
			if target.Tracking().ID() == 0 {
				return Record{}, fmt.Errorf("%s link %q targets an unsaved %s", rec.Key(), name, target.Category())
			}
			if rec.Refs == nil {
				rec.Refs = make(map[string][]Ref)
			}
			rec.Refs[name] = append(rec.Refs[name], Ref{Category: target.Category(), ID: target.Tracking().ID()})
		}
	}
	for name, refs := range o.dangling {
		if rec.Refs == nil {
			rec.Refs = make(map[string][]Ref)
		}
		rec.Refs[name] = append(rec.Refs[name], refs...)
	}
	return rec, nil
}

// ApplyFields implements Object.
func (o *GenericObject) ApplyFields(rec Record) error {
	if rec.Category != o.category {
		return fmt.Errorf("record %s does not belong to category %s", rec.Key(), o.category)
	}
	o.fields = make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		o.fields[k] = v
	}
	return nil
}

// ApplyRelations implements Object. Unresolvable references are kept so a
// later export does not lose them.
func (o *GenericObject) ApplyRelations(rec Record, resolver Resolver) error {
	o.links = make(map[string][]Object, len(rec.Refs))
	o.dangling = nil
	for name, refs := range rec.Refs {
		for _, ref := range refs {
			if target, ok := resolver.Resolve(ref); ok {
				o.links[name] = append(o.links[name], target)
				continue
			}
			if o.dangling == nil {
				o.dangling = make(map[string][]Ref)
			}
			o.dangling[name] = append(o.dangling[name], ref)
		}
	}
	return nil
}
