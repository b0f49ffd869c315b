package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

// commit writes the outermost scope's changes and finalizes them. A failure
// leaves the scope's sets intact and takes no pins.
func (s *Session) commit(ctx context.Context, sc *Scope) (err error) {
	ctx, span := s.tracer.Start(ctx, OpCommit)
	start := time.Now()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpCommit, err == nil, time.Since(start))
	}()

	added, updated, removed := sc.Added(), sc.Updated(), sc.Removed()
	if err := s.persist(ctx, sc, added, updated, removed); err != nil {
		s.log.Warn("commit failed", zap.String("description", sc.description), zap.Error(err))
		return err
	}
	for _, obj := range added {
		obj.Tracking().SetState(domain.StateSynced)
	}
	for _, obj := range updated {
		obj.Tracking().SetState(domain.StateSynced)
	}
	for _, obj := range removed {
		obj.Tracking().SetState(domain.StateDeleted)
	}
	s.finalize(sc, added, updated, removed)
	sc.clear()
	s.log.Debug("scope committed",
		zap.String("description", sc.description),
		zap.Int("added", len(added)),
		zap.Int("updated", len(updated)),
		zap.Int("removed", len(removed)))
	return nil
}

func (s *Session) persist(ctx context.Context, sc *Scope, added, updated, removed []domain.Object) error {
	p := sc.persister
	if err := p.Save(added, updated); err != nil {
		p.Discard()
		return fmt.Errorf("commit %q: save: %w", sc.description, err)
	}
	if err := p.Delete(removed); err != nil {
		p.Discard()
		return fmt.Errorf("commit %q: delete: %w", sc.description, err)
	}
	if len(added)+len(updated)+len(removed) == 0 && !sc.forceSave {
		p.Discard()
		return nil
	}
	start := time.Now()
	err := p.Flush(ctx)
	s.metrics.Observe(ctx, OpFlush, err == nil, time.Since(start))
	if err != nil {
		p.Discard()
		return fmt.Errorf("commit %q: flush: %w", sc.description, err)
	}
	for _, obj := range added {
		if id, ok := p.ResolvedID(obj); ok {
			obj.Tracking().SetID(id)
		}
	}
	return nil
}
