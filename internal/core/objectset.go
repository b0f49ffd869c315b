package core

import (
	"container/list"

	"trackcore/pkg/domain"
)

// objectSet is an identity-keyed set that remembers insertion order.
type objectSet struct {
	order *list.List
	index map[domain.Object]*list.Element
}

func newObjectSet() *objectSet {
	return &objectSet{order: list.New(), index: make(map[domain.Object]*list.Element)}
}

func (s *objectSet) has(obj domain.Object) bool {
	_, ok := s.index[obj]
	return ok
}

// add reports whether obj was inserted.
func (s *objectSet) add(obj domain.Object) bool {
	if s.has(obj) {
		return false
	}
	s.index[obj] = s.order.PushBack(obj)
	return true
}

// remove reports whether obj was present.
func (s *objectSet) remove(obj domain.Object) bool {
	el, ok := s.index[obj]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.index, obj)
	return true
}

func (s *objectSet) len() int { return len(s.index) }

func (s *objectSet) slice() []domain.Object {
	out := make([]domain.Object, 0, len(s.index))
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(domain.Object))
	}
	return out
}

func (s *objectSet) clear() {
	s.order.Init()
	clear(s.index)
}
