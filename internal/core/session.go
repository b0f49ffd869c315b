// Package core hosts the tracking session: nested commit scopes over a
// persistent store, the identity map of loaded objects, the id allocators
// and the bridge into undo history.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trackcore/internal/history"
	"trackcore/internal/identity"
	"trackcore/internal/idgen"
	"trackcore/pkg/domain"
)

// Compile-time contract assertion ensuring the session routes object changes.
var _ domain.Tracker = (*Session)(nil)

// Session owns one scope stack, the identity map and the allocators. It is a
// single-writer type: callers serialize mutations. The identity map and the
// stores are safe for concurrent readers.
type Session struct {
	store    domain.PersistentStore
	registry *domain.Registry
	objects  *identity.Map
	ids      *idgen.Set
	strategy IDStrategy
	history  domain.HistoryStore

	scopes      []*Scope
	suppressed  bool
	virtual     bool
	placeholder int64

	log     *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// NewSession builds a session over store. Objects are instantiated through
// registry.
func NewSession(store domain.PersistentStore, registry *domain.Registry, opts ...Option) *Session {
	s := &Session{
		store:    store,
		registry: registry,
		ids:      idgen.NewSet(),
		strategy: IDStrategyAllocator,
		log:      zap.NewNop(),
		metrics:  noopMetrics{},
		tracer:   noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = history.New(history.WithLogger(s.log))
	}
	s.objects = identity.New(registry,
		identity.WithTracker(s),
		identity.WithLoadOnDemand(s.loadOnDemand),
		identity.WithLogger(s.log),
	)
	return s
}

// New instantiates an object of category reporting its changes to the
// session. It is tracked from its first MarkDirty.
func (s *Session) New(category domain.Category) (domain.Object, error) {
	obj, err := s.registry.New(category)
	if err != nil {
		return nil, err
	}
	obj.Tracking().Attach(s)
	return obj, nil
}

// Store returns the persistent store.
func (s *Session) Store() domain.PersistentStore { return s.store }

// Objects returns the identity map.
func (s *Session) Objects() *identity.Map { return s.objects }

// Allocators returns the per-category id allocators.
func (s *Session) Allocators() *idgen.Set { return s.ids }

// History returns the history store.
func (s *Session) History() domain.HistoryStore { return s.history }

// IDStrategy reports how new objects get their ids.
func (s *Session) IDStrategy() IDStrategy { return s.strategy }

// OnObjectsChanged subscribes to identity map notifications. The returned
// func unsubscribes.
func (s *Session) OnObjectsChanged(fn func(domain.CollectionEvent)) func() {
	return s.objects.AddListener(fn)
}

// Current returns the innermost open scope, or nil.
func (s *Session) Current() *Scope {
	if len(s.scopes) == 0 {
		return nil
	}
	return s.scopes[len(s.scopes)-1]
}

// Depth returns the number of open scopes.
func (s *Session) Depth() int { return len(s.scopes) }

// SetSuppressed toggles suppressed mode. While suppressed, change reports
// only mark objects synced.
func (s *Session) SetSuppressed(on bool) { s.suppressed = on }

// Suppressed reports whether suppressed mode is on.
func (s *Session) Suppressed() bool { return s.suppressed }

// SetVirtualChange makes EditField skip history recording while on.
func (s *Session) SetVirtualChange(on bool) { s.virtual = on }

// Begin opens a scope recorded in history.
func (s *Session) Begin(ctx context.Context, description string) (*Scope, error) {
	return s.begin(ctx, description, true)
}

// BeginUntracked opens a scope that never records history.
func (s *Session) BeginUntracked(ctx context.Context, description string) (*Scope, error) {
	return s.begin(ctx, description, false)
}

func (s *Session) begin(ctx context.Context, description string, tracked bool) (*Scope, error) {
	sc := &Scope{
		session:     s,
		parent:      s.Current(),
		depth:       len(s.scopes) + 1,
		description: description,
		tracked:     tracked,
		added:       newObjectSet(),
		updated:     newObjectSet(),
		removed:     newObjectSet(),
	}
	if sc.parent == nil {
		p, err := s.store.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin %q: %w", description, err)
		}
		sc.persister = p
		sc.openChangeset()
	}
	s.scopes = append(s.scopes, sc)
	s.log.Debug("scope opened", zap.String("description", description), zap.Int("depth", sc.depth), zap.Bool("tracked", tracked))
	return sc, nil
}

func (s *Session) pop(sc *Scope) error {
	if s.Current() != sc {
		return domain.ErrScopeNotCurrent
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
	return nil
}

// MarkDirty implements domain.Tracker.
func (s *Session) MarkDirty(obj domain.Object) {
	if s.suppressed {
		obj.Tracking().SetState(domain.StateSynced)
		return
	}
	sc := s.Current()
	if sc == nil {
		s.logNoScope("mark dirty", obj)
		return
	}
	sc.markDirty(obj)
}

// MarkRemoved implements domain.Tracker.
func (s *Session) MarkRemoved(obj domain.Object) {
	if s.suppressed {
		obj.Tracking().SetState(domain.StateSynced)
		return
	}
	sc := s.Current()
	if sc == nil {
		s.logNoScope("mark removed", obj)
		return
	}
	sc.markRemoved(obj)
}

// CancelPendingChange implements domain.Tracker.
func (s *Session) CancelPendingChange(obj domain.Object) {
	if s.suppressed {
		obj.Tracking().SetState(domain.StateSynced)
		return
	}
	sc := s.Current()
	if sc == nil {
		s.logNoScope("cancel change", obj)
		return
	}
	sc.cancel(obj)
}

func (s *Session) logNoScope(op string, obj domain.Object) {
	s.log.Debug(op+" outside any scope",
		zap.String("category", string(obj.Category())),
		zap.Int64("id", obj.Tracking().ID()),
		zap.Error(domain.ErrNoActiveScope))
}

// nextID hands out the id of a newly tracked object.
func (s *Session) nextID(obj domain.Object) int64 {
	if s.strategy == IDStrategyStorage {
		s.placeholder++
		return -s.placeholder
	}
	s.metrics.Add(CounterIDsGenerated, 1)
	return s.ids.For(obj.Category()).Generate()
}

// reclaimID returns the id of a removed object to its allocator.
func (s *Session) reclaimID(obj domain.Object) {
	id := obj.Tracking().ID()
	if s.strategy == IDStrategyStorage || id <= 0 {
		return
	}
	gen := s.ids.For(obj.Category())
	if !gen.Unuse(id) {
		err := &domain.ConsistencyError{Op: "unuse", Category: obj.Category(), ID: id}
		s.metrics.Add(CounterConsistencyViolations, 1)
		s.log.Error("id reclaim rejected", zap.Error(err))
		return
	}
	s.metrics.Add(CounterIDsReclaimed, 1)
}

// LoadAll reads every record of the given categories (all when none) into
// the identity map with tracking suppressed, then seeds the allocators from
// the whole map.
func (s *Session) LoadAll(ctx context.Context, categories ...domain.Category) (pairs []identity.Pair, err error) {
	ctx, span := s.tracer.Start(ctx, OpLoad)
	start := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpLoad, err == nil, time.Since(start))
	}()

	records, err := s.store.LoadRecords(ctx, categories...)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	prev := s.suppressed
	s.suppressed = true
	pairs, err = s.objects.Load(records)
	s.suppressed = prev
	if seedErr := s.InitializeAllocators(); seedErr != nil {
		err = errors.Join(err, seedErr)
	}
	if pairs == nil && err != nil {
		// the batch was rejected; its ids still exist in the store
		s.reserveIDs(records)
	}
	return pairs, err
}

func (s *Session) reserveIDs(records []domain.Record) {
	if s.strategy == IDStrategyStorage {
		return
	}
	for _, rec := range records {
		if rec.ID > 0 {
			s.ids.For(rec.Category).Use(rec.ID)
		}
	}
}

// InitializeAllocators rebuilds the allocators so every id present in the
// identity map is in use, along with the ids handed to objects still pending
// as added in an open scope. Rejected ids are returned as consistency errors.
func (s *Session) InitializeAllocators() error {
	if s.strategy == IDStrategyStorage {
		return nil
	}
	inUse := s.objects.All()
	for _, sc := range s.scopes {
		inUse = append(inUse, sc.Added()...)
	}
	s.ids = idgen.NewSet()
	err := s.ids.Seed(inUse)
	if err != nil {
		s.log.Error("allocator seeding found duplicate ids", zap.Error(err))
	}
	return err
}

func (s *Session) loadOnDemand(category domain.Category, id int64) (domain.Object, bool) {
	rec, ok, err := s.store.GetRecord(context.Background(), domain.Ref{Category: category, ID: id})
	if err != nil {
		s.log.Warn("load on demand failed", zap.String("category", string(category)), zap.Int64("id", id), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	prev := s.suppressed
	s.suppressed = true
	pairs, err := s.objects.Load([]domain.Record{rec})
	s.suppressed = prev
	if err != nil {
		s.log.Warn("load on demand incomplete", zap.String("key", rec.Key()), zap.Error(err))
	}
	if len(pairs) == 0 {
		return nil, false
	}
	obj := pairs[0].Object
	if s.strategy == IDStrategyAllocator {
		if !s.ids.For(category).Use(id) {
			s.log.Debug("on-demand id already in use", zap.String("category", string(category)), zap.Int64("id", id))
		}
	}
	return obj, true
}

// EditField assigns a field and reports the object dirty. Unless virtual
// changes are on, the edit is recorded in the open changeset so it can be
// undone.
func (s *Session) EditField(obj history.FieldSetter, field string, value any) {
	before, _ := obj.Field(field)
	obj.SetField(field, value)
	if cs := s.history.CommittingChangeset(); cs != nil && !s.virtual && !s.suppressed && s.history.TrackingEnabled() {
		cs.Append(&history.FieldEdit{Target: obj, Field: field, Before: before, After: value})
	}
	domain.Save(obj)
}

// CanUndo reports whether a changeset can be undone.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether a changeset can be redone.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Undo reverts the latest changeset inside an untracked scope and commits
// the result.
func (s *Session) Undo(ctx context.Context) error {
	return s.replay(ctx, "undo", s.history.Undo)
}

// Redo reapplies the latest undone changeset inside an untracked scope.
func (s *Session) Redo(ctx context.Context) error {
	return s.replay(ctx, "redo", s.history.Redo)
}

func (s *Session) replay(ctx context.Context, description string, step func() error) (err error) {
	sc, err := s.BeginUntracked(ctx, description)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sc.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	if err := step(); err != nil {
		return err
	}
	return sc.Commit(ctx)
}

// Close discards every open scope, innermost first, then closes the store.
func (s *Session) Close() error {
	var errs []error
	for sc := s.Current(); sc != nil; sc = s.Current() {
		if err := sc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
