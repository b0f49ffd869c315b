package idgen

import (
	"errors"
	"sort"

	"trackcore/pkg/domain"
)

// Set keeps one Generator per category.
type Set struct {
	gens map[domain.Category]*Generator
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{gens: make(map[domain.Category]*Generator)}
}

// For returns the category's generator, creating it on first use.
func (s *Set) For(category domain.Category) *Generator {
	g, ok := s.gens[category]
	if !ok {
		g = New()
		s.gens[category] = g
	}
	return g
}

// Lookup returns the category's generator without creating one.
func (s *Set) Lookup(category domain.Category) (*Generator, bool) {
	g, ok := s.gens[category]
	return g, ok
}

// Categories lists categories with a generator, in lexical order.
func (s *Set) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(s.gens))
	for c := range s.gens {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Seed marks the ids of already persisted objects as used. Every id that is
// rejected yields a *domain.ConsistencyError; all of them are joined.
func (s *Set) Seed(objects []domain.Object) error {
	var errs []error
	for _, obj := range objects {
		id := obj.Tracking().ID()
		if !s.For(obj.Category()).Use(id) {
			errs = append(errs, &domain.ConsistencyError{Op: "use", Category: obj.Category(), ID: id})
		}
	}
	return errors.Join(errs...)
}
