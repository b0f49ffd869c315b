// Package identity keeps at most one live object per (category, id) and
// notifies listeners of membership changes in batches.
package identity

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

// LoadOnDemandFunc materializes an object the map does not hold yet. It is
// consulted while relations are resolved.
type LoadOnDemandFunc func(category domain.Category, id int64) (domain.Object, bool)

// Pair couples a loaded record with the object that now represents it.
type Pair struct {
	Record domain.Record
	Object domain.Object
}

// Option configures a Map.
type Option func(*Map)

// WithTracker attaches every object the map instantiates to t.
func WithTracker(t domain.Tracker) Option {
	return func(m *Map) { m.tracker = t }
}

// WithLoadOnDemand installs the fallback used for unresolved references.
func WithLoadOnDemand(fn LoadOnDemandFunc) Option {
	return func(m *Map) { m.onDemand = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Map) {
		if l != nil {
			m.log = l
		}
	}
}

// Map is the identity map. Reads are safe from any goroutine; mutations are
// expected from the single writer that owns the session. Listeners run on the
// mutating goroutine after the map lock is released.
type Map struct {
	mu        sync.RWMutex
	entries   map[domain.Category]map[int64]domain.Object
	registry  *domain.Registry
	tracker   domain.Tracker
	onDemand  LoadOnDemandFunc
	listeners map[int]func(domain.CollectionEvent)
	nextLis   int
	log       *zap.Logger
}

// New returns an empty map that instantiates objects through registry.
func New(registry *domain.Registry, opts ...Option) *Map {
	m := &Map{
		entries:   make(map[domain.Category]map[int64]domain.Object),
		registry:  registry,
		listeners: make(map[int]func(domain.CollectionEvent)),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTracker replaces the tracker attached to newly instantiated objects.
func (m *Map) SetTracker(t domain.Tracker) { m.tracker = t }

// SetLoadOnDemand replaces the load-on-demand fallback.
func (m *Map) SetLoadOnDemand(fn LoadOnDemandFunc) { m.onDemand = fn }

// AddListener subscribes fn to collection events and returns a function that
// unsubscribes it.
func (m *Map) AddListener(fn func(domain.CollectionEvent)) func() {
	m.mu.Lock()
	id := m.nextLis
	m.nextLis++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Map) emit(action domain.CollectionAction, objects []domain.Object) {
	m.mu.RLock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(domain.CollectionEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	m.mu.RUnlock()
	ev := domain.CollectionEvent{Action: action, Objects: objects}
	for _, fn := range fns {
		fn(ev)
	}
}

// TryGet returns the object held for (category, id).
func (m *Map) TryGet(category domain.Category, id int64) (domain.Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.entries[category][id]
	return obj, ok
}

// Len returns the number of objects held.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byID := range m.entries {
		n += len(byID)
	}
	return n
}

// Categories lists categories with at least one object, in lexical order.
func (m *Map) Categories() []domain.Category {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Category, 0, len(m.entries))
	for c, byID := range m.entries {
		if len(byID) > 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Objects returns the category's objects ordered by id.
func (m *Map) Objects(category domain.Category) []domain.Object {
	m.mu.RLock()
	byID := m.entries[category]
	out := make([]domain.Object, 0, len(byID))
	for _, obj := range byID {
		out = append(out, obj)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Tracking().ID() < out[j].Tracking().ID() })
	return out
}

// All returns every held object ordered by category then id.
func (m *Map) All() []domain.Object {
	var out []domain.Object
	for _, c := range m.Categories() {
		out = append(out, m.Objects(c)...)
	}
	return out
}

// Load materializes records. Records already represented are refreshed in
// place; the rest are instantiated and inserted. Scalar fields of the whole
// batch are applied before any relation so references within the batch
// resolve. Every loaded object ends synced. One add event listing the newly
// created objects is emitted; relation errors are joined and returned after
// it.
//
// New objects enter the map only once every record of the batch has been
// instantiated and had its fields applied. When that fails nothing is
// inserted and no event is emitted.
func (m *Map) Load(records []domain.Record) ([]Pair, error) {
	pairs := make([]Pair, 0, len(records))
	var created []domain.Object
	pending := make(map[domain.Ref]domain.Object)
	for _, rec := range records {
		obj, ok := m.TryGet(rec.Category, rec.ID)
		if !ok {
			obj, ok = pending[rec.Ref()]
		}
		if !ok {
			fresh, err := m.registry.New(rec.Category)
			if err != nil {
				return nil, fmt.Errorf("load %s: %w", rec.Key(), err)
			}
			fresh.Tracking().SetID(rec.ID)
			if m.tracker != nil {
				fresh.Tracking().Attach(m.tracker)
			}
			pending[rec.Ref()] = fresh
			created = append(created, fresh)
			obj = fresh
		}
		pairs = append(pairs, Pair{Record: rec, Object: obj})
	}
	for _, p := range pairs {
		if err := p.Object.ApplyFields(p.Record); err != nil {
			return nil, fmt.Errorf("load %s: %w", p.Record.Key(), err)
		}
	}
	for _, obj := range created {
		m.put(obj)
	}

	resolver := domain.ResolverFunc(m.resolve)
	var errs []error
	for _, p := range pairs {
		if err := p.Object.ApplyRelations(p.Record, resolver); err != nil {
			errs = append(errs, fmt.Errorf("relations of %s: %w", p.Record.Key(), err))
		}
		p.Object.Tracking().SetState(domain.StateSynced)
	}
	m.log.Debug("objects loaded", zap.Int("records", len(records)), zap.Int("created", len(created)))
	m.emit(domain.ActionAdd, created)
	return pairs, errors.Join(errs...)
}

func (m *Map) resolve(ref domain.Ref) (domain.Object, bool) {
	if obj, ok := m.TryGet(ref.Category, ref.ID); ok {
		return obj, true
	}
	if m.onDemand == nil {
		return nil, false
	}
	return m.onDemand(ref.Category, ref.ID)
}

func (m *Map) put(obj domain.Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.entries[obj.Category()]
	if !ok {
		byID = make(map[int64]domain.Object)
		m.entries[obj.Category()] = byID
	}
	byID[obj.Tracking().ID()] = obj
}

// Drop evicts objects. Unless force is set, objects pinned by history are
// kept. An entry is only removed when it holds that very object. One remove
// event lists the objects actually removed, which are also returned.
func (m *Map) Drop(objects []domain.Object, force bool) []domain.Object {
	removed := make([]domain.Object, 0, len(objects))
	m.mu.Lock()
	for _, obj := range objects {
		if !force && obj.Tracking().Pinned() {
			continue
		}
		byID := m.entries[obj.Category()]
		id := obj.Tracking().ID()
		if held, ok := byID[id]; ok && held == obj {
			delete(byID, id)
			removed = append(removed, obj)
		}
	}
	m.mu.Unlock()
	m.emit(domain.ActionRemove, removed)
	return removed
}

// Add inserts objects keyed by their current id. Objects whose key is taken
// are skipped silently. The add event lists the whole input.
func (m *Map) Add(objects []domain.Object) {
	m.mu.Lock()
	for _, obj := range objects {
		byID, ok := m.entries[obj.Category()]
		if !ok {
			byID = make(map[int64]domain.Object)
			m.entries[obj.Category()] = byID
		}
		id := obj.Tracking().ID()
		if _, taken := byID[id]; taken {
			continue
		}
		byID[id] = obj
	}
	m.mu.Unlock()
	m.emit(domain.ActionAdd, objects)
}
