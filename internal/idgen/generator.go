// Package idgen allocates integer identifiers per category by tracking the
// unused ranges ("holes") between identifiers in use.
package idgen

import (
	"container/list"
	"fmt"
	"math"
)

// MaxID is the largest identifier the generator hands out.
const MaxID int64 = math.MaxInt64

// Range is an inclusive span of free identifiers.
type Range struct {
	Begin int64
	End   int64
}

func (r Range) String() string { return fmt.Sprintf("[%d,%d]", r.Begin, r.End) }

// Len returns the number of identifiers in the range.
func (r Range) Len() int64 { return r.End - r.Begin + 1 }

// Generator tracks free identifiers as an ascending list of disjoint, non
// adjacent holes. An empty list means no identifier is in use.
//
// Generate takes from the first hole. Use scans from the tail, which is where
// sequentially loaded ids land. Unuse scans from the head and coalesces.
// Generator is not safe for concurrent use.
type Generator struct {
	holes *list.List // of *Range
}

// New returns a generator that has issued nothing.
func New() *Generator {
	return &Generator{holes: list.New()}
}

// Generate returns the smallest free identifier and marks it used.
func (g *Generator) Generate() int64 {
	front := g.holes.Front()
	if front == nil {
		g.holes.PushBack(&Range{Begin: 2, End: MaxID})
		return 1
	}
	hole := front.Value.(*Range)
	id := hole.Begin
	if hole.Begin == hole.End {
		g.holes.Remove(front)
	} else {
		hole.Begin++
	}
	return id
}

// Use marks id as taken. It reports false when id is already in use.
func (g *Generator) Use(id int64) bool {
	if id <= 0 {
		return false
	}
	if g.holes.Len() == 0 {
		if id > 1 {
			g.holes.PushBack(&Range{Begin: 1, End: id - 1})
		}
		if id < MaxID {
			g.holes.PushBack(&Range{Begin: id + 1, End: MaxID})
		}
		return true
	}
	for e := g.holes.Back(); e != nil; e = e.Prev() {
		hole := e.Value.(*Range)
		if hole.Begin > id {
			continue
		}
		if hole.End < id {
			// id lies between this hole and the next one: already used.
			return false
		}
		switch {
		case hole.Begin == id && hole.End == id:
			g.holes.Remove(e)
		case hole.Begin == id:
			hole.Begin++
		case hole.End == id:
			hole.End--
		default:
			g.holes.InsertAfter(&Range{Begin: id + 1, End: hole.End}, e)
			hole.End = id - 1
		}
		return true
	}
	return false
}

// Unuse returns id to the free pool. It reports false when id was already
// free or was never issued. Once every id is free again the generator is back
// to its fresh state.
func (g *Generator) Unuse(id int64) bool {
	if !g.unuse(id) {
		return false
	}
	if g.holes.Len() == 1 {
		if hole := g.holes.Front().Value.(*Range); hole.Begin == 1 && hole.End == MaxID {
			g.holes.Init()
		}
	}
	return true
}

func (g *Generator) unuse(id int64) bool {
	if id <= 0 || g.holes.Len() == 0 {
		return false
	}
	for e := g.holes.Front(); e != nil; e = e.Next() {
		next := e.Value.(*Range)
		if next.Begin <= id {
			continue
		}
		if p := e.Prev(); p != nil {
			prev := p.Value.(*Range)
			if prev.End >= id {
				return false
			}
			if prev.End+2 == next.Begin {
				// id is the single gap between prev and next.
				prev.End = next.End
				g.holes.Remove(e)
				return true
			}
			if prev.End+1 == id {
				prev.End = id
				return true
			}
		}
		if next.Begin == id+1 {
			next.Begin = id
		} else {
			g.holes.InsertBefore(&Range{Begin: id, End: id}, e)
		}
		return true
	}
	// id sits at or above the start of the last hole.
	last := g.holes.Back().Value.(*Range)
	switch {
	case last.End >= id:
		return false
	case last.End+1 == id:
		last.End = id
	default:
		g.holes.PushBack(&Range{Begin: id, End: id})
	}
	return true
}

// IsFree reports whether id is inside a hole.
func (g *Generator) IsFree(id int64) bool {
	if g.holes.Len() == 0 {
		return id > 0
	}
	for e := g.holes.Front(); e != nil; e = e.Next() {
		hole := e.Value.(*Range)
		if id < hole.Begin {
			return false
		}
		if id <= hole.End {
			return true
		}
	}
	return false
}

// Holes returns a copy of the hole list in ascending order.
func (g *Generator) Holes() []Range {
	out := make([]Range, 0, g.holes.Len())
	for e := g.holes.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Range))
	}
	return out
}
