package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

// Scope collects the objects added, updated and removed while it is the
// innermost open scope. Committing a nested scope only marks it for merging
// into its parent on Close; committing the outermost scope writes the
// collected changes to the store.
type Scope struct {
	session     *Session
	parent      *Scope
	depth       int
	description string
	tracked     bool

	persister domain.Persister
	changeset *domain.Changeset

	added   *objectSet
	updated *objectSet
	removed *objectSet

	forceSave    bool
	mergePending bool
	closed       bool
}

// Depth is 1 for the outermost scope.
func (sc *Scope) Depth() int { return sc.depth }

// Outermost reports whether the scope has no parent.
func (sc *Scope) Outermost() bool { return sc.parent == nil }

// Description returns the label given at Begin.
func (sc *Scope) Description() string { return sc.description }

// Tracked reports whether the scope records history.
func (sc *Scope) Tracked() bool { return sc.tracked }

// Closed reports whether Close has run.
func (sc *Scope) Closed() bool { return sc.closed }

// MergePending reports whether a nested scope was committed and will fold
// into its parent on Close.
func (sc *Scope) MergePending() bool { return sc.mergePending }

// Added returns the added objects in insertion order.
func (sc *Scope) Added() []domain.Object { return sc.added.slice() }

// Updated returns the updated objects in insertion order.
func (sc *Scope) Updated() []domain.Object { return sc.updated.slice() }

// Removed returns the removed objects in insertion order.
func (sc *Scope) Removed() []domain.Object { return sc.removed.slice() }

// Empty reports whether no change is pending.
func (sc *Scope) Empty() bool {
	return sc.added.len() == 0 && sc.updated.len() == 0 && sc.removed.len() == 0
}

// SetForceSave makes the outermost commit flush the store even when no change
// is pending.
func (sc *Scope) SetForceSave(on bool) { sc.forceSave = on }

// Changeset returns the history changeset the scope records into, if any.
func (sc *Scope) Changeset() *domain.Changeset { return sc.changeset }

func (sc *Scope) openChangeset() {
	s := sc.session
	if !sc.tracked || s.suppressed || !s.history.TrackingEnabled() {
		return
	}
	sc.changeset = s.history.StartChangeset(sc.description)
}

func (sc *Scope) markDirty(obj domain.Object) {
	if sc.removed.remove(obj) {
		return
	}
	t := obj.Tracking()
	if t.ID() == 0 {
		t.SetID(sc.session.nextID(obj))
		sc.added.add(obj)
		return
	}
	if !sc.added.has(obj) {
		sc.updated.add(obj)
	}
}

func (sc *Scope) markRemoved(obj domain.Object) {
	if sc.added.remove(obj) {
		return
	}
	if obj.Tracking().ID() == 0 {
		return
	}
	sc.updated.remove(obj)
	sc.removed.add(obj)
}

func (sc *Scope) cancel(obj domain.Object) {
	_ = sc.added.remove(obj) || sc.updated.remove(obj) || sc.removed.remove(obj)
}

// Commit commits the scope. Only the innermost open scope may commit.
func (sc *Scope) Commit(ctx context.Context) error {
	if sc.closed {
		return domain.ErrScopeClosed
	}
	if sc.session.Current() != sc {
		return domain.ErrScopeNotCurrent
	}
	if sc.parent != nil {
		sc.mergePending = true
		return nil
	}
	return sc.session.commit(ctx, sc)
}

// CommitAsync runs Commit on its own goroutine. The channel yields the
// result once and is then closed. The session must not be used until it
// does.
func (sc *Scope) CommitAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- sc.Commit(ctx)
	}()
	return done
}

// Close pops the scope. A committed nested scope folds its changes into the
// parent; an uncommitted one discards them. Closing the outermost scope
// releases the persister and abandons history that was never committed.
// Close is idempotent.
func (sc *Scope) Close() error {
	if sc.closed {
		return nil
	}
	s := sc.session
	if err := s.pop(sc); err != nil {
		return err
	}
	sc.closed = true
	defer s.log.Debug("scope closed", zap.String("description", sc.description), zap.Int("depth", sc.depth))

	if sc.parent == nil {
		if sc.changeset != nil {
			s.history.Abandon()
			sc.changeset = nil
		}
		if err := sc.persister.Close(); err != nil {
			return fmt.Errorf("close %q: %w", sc.description, err)
		}
		return nil
	}
	if !sc.mergePending {
		if !sc.Empty() {
			s.metrics.Add(CounterDiscardedScopes, 1)
			s.log.Debug("uncommitted scope discarded",
				zap.String("description", sc.description),
				zap.Int("added", sc.added.len()),
				zap.Int("updated", sc.updated.len()),
				zap.Int("removed", sc.removed.len()))
		}
		return nil
	}
	start := time.Now()
	sc.mergeInto(sc.parent)
	s.metrics.Observe(context.Background(), OpMerge, true, time.Since(start))
	return nil
}

func (sc *Scope) mergeInto(parent *Scope) {
	for _, obj := range sc.added.slice() {
		parent.removed.remove(obj)
		parent.added.add(obj)
	}
	for _, obj := range sc.updated.slice() {
		if parent.removed.remove(obj) {
			continue
		}
		if !parent.added.has(obj) {
			parent.updated.add(obj)
		}
	}
	for _, obj := range sc.removed.slice() {
		if parent.added.remove(obj) {
			continue
		}
		parent.updated.remove(obj)
		parent.removed.add(obj)
	}
}

func (sc *Scope) clear() {
	sc.added.clear()
	sc.updated.clear()
	sc.removed.clear()
}
