package domain

import (
	"fmt"
	"sort"
	"sync"
)

// Object is implemented by every tracked object. Implementations hold a
// Tracking value and translate themselves to and from Record.
type Object interface {
	Tracking() *Tracking
	Category() Category
	// ExportRecord captures scalar fields and references for persistence.
	ExportRecord() (Record, error)
	// ApplyFields copies scalar fields from a record. Relations are applied in
	// a second pass once every object of the batch exists.
	ApplyFields(Record) error
	// ApplyRelations resolves references from a record.
	ApplyRelations(Record, Resolver) error
}

// Resolver looks up objects by reference while relations are applied.
type Resolver interface {
	Resolve(Ref) (Object, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(Ref) (Object, bool)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ref Ref) (Object, bool) { return f(ref) }

// Constructor instantiates an empty object of one category.
type Constructor func() Object

// Registry maps categories to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[Category]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[Category]Constructor)}
}

// Register binds a constructor to a category, replacing any previous binding.
func (r *Registry) Register(category Category, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[category] = ctor
}

// RegisterGeneric binds categories to GenericObject.
func (r *Registry) RegisterGeneric(categories ...Category) {
	for _, c := range categories {
		category := c
		r.Register(category, func() Object { return NewGenericObject(category) })
	}
}

// New instantiates an object of the category.
func (r *Registry) New(category Category) (Object, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[category]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	return ctor(), nil
}

// Categories lists registered categories in lexical order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0, len(r.ctors))
	for c := range r.ctors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
