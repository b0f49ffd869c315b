// Package history keeps committed changesets on undo and redo stacks.
package history

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

var (
	// ErrChangesetOpen is returned when undo or redo is attempted while a
	// changeset is still collecting records.
	ErrChangesetOpen = errors.New("history: changeset still open")
	// ErrNoChangeset is returned by Commit without an open changeset.
	ErrNoChangeset = errors.New("history: no open changeset")
)

// Option configures a Manager.
type Option func(*Manager)

// WithMaxDepth bounds the undo stack. Changesets pushed out of it release
// their pins. Zero keeps everything.
func WithMaxDepth(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxDepth = n
		}
	}
}

// WithTracking sets whether changes are recorded initially.
func WithTracking(enabled bool) Option {
	return func(m *Manager) { m.enabled = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Manager implements domain.HistoryStore in memory. It is not safe for
// concurrent use; the owning session serializes access.
type Manager struct {
	enabled  bool
	maxDepth int
	open     *domain.Changeset
	undo     []*domain.Changeset
	redo     []*domain.Changeset
	log      *zap.Logger
}

var _ domain.HistoryStore = (*Manager)(nil)

// New returns a manager with tracking enabled and unbounded depth.
func New(opts ...Option) *Manager {
	m := &Manager{enabled: true, log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTracking switches change recording on or off.
func (m *Manager) SetTracking(enabled bool) { m.enabled = enabled }

// TrackingEnabled implements domain.HistoryStore.
func (m *Manager) TrackingEnabled() bool { return m.enabled }

// StartChangeset implements domain.HistoryStore. An already open changeset
// is returned as is so nested callers share it.
func (m *Manager) StartChangeset(description string) *domain.Changeset {
	if m.open == nil {
		m.open = domain.NewChangeset(description)
	}
	return m.open
}

// CommittingChangeset implements domain.HistoryStore.
func (m *Manager) CommittingChangeset() *domain.Changeset { return m.open }

// Commit seals the open changeset onto the undo stack. The redo stack is
// cleared and every changeset leaving history releases its pins.
func (m *Manager) Commit() error {
	cs := m.open
	if cs == nil {
		return ErrNoChangeset
	}
	m.open = nil
	if cs.Len() == 0 && len(cs.Pinned) == 0 {
		return nil
	}
	for _, old := range m.redo {
		m.expire(old)
	}
	m.redo = nil
	m.undo = append(m.undo, cs)
	if m.maxDepth > 0 && len(m.undo) > m.maxDepth {
		drop := len(m.undo) - m.maxDepth
		for _, old := range m.undo[:drop] {
			m.expire(old)
		}
		m.undo = append([]*domain.Changeset(nil), m.undo[drop:]...)
	}
	m.log.Debug("changeset committed", zap.String("changeset", cs.ID.String()), zap.String("description", cs.Description), zap.Int("records", cs.Len()))
	return nil
}

// Abandon drops the open changeset without recording it.
func (m *Manager) Abandon() {
	if m.open == nil {
		return
	}
	m.expire(m.open)
	m.open = nil
}

func (m *Manager) expire(cs *domain.Changeset) {
	released := cs.ReleasePins()
	m.log.Debug("changeset expired", zap.String("changeset", cs.ID.String()), zap.Int("released_pins", released))
}

// CanUndo implements domain.HistoryStore.
func (m *Manager) CanUndo() bool { return m.open == nil && len(m.undo) > 0 }

// CanRedo implements domain.HistoryStore.
func (m *Manager) CanRedo() bool { return m.open == nil && len(m.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) { return len(m.undo), len(m.redo) }

// Undo reverts the latest changeset, undoing its records last to first.
func (m *Manager) Undo() error {
	if m.open != nil {
		return ErrChangesetOpen
	}
	if len(m.undo) == 0 {
		return domain.ErrHistoryEmpty
	}
	cs := m.undo[len(m.undo)-1]
	for i := len(cs.Records) - 1; i >= 0; i-- {
		if err := cs.Records[i].Undo(); err != nil {
			return fmt.Errorf("undo %q: %w", cs.Description, err)
		}
	}
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, cs)
	return nil
}

// Redo reapplies the latest undone changeset, first record first.
func (m *Manager) Redo() error {
	if m.open != nil {
		return ErrChangesetOpen
	}
	if len(m.redo) == 0 {
		return domain.ErrHistoryEmpty
	}
	cs := m.redo[len(m.redo)-1]
	for _, rec := range cs.Records {
		if err := rec.Redo(); err != nil {
			return fmt.Errorf("redo %q: %w", cs.Description, err)
		}
	}
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, cs)
	return nil
}

// Clear empties both stacks, releasing every pin.
func (m *Manager) Clear() {
	for _, cs := range m.undo {
		m.expire(cs)
	}
	for _, cs := range m.redo {
		m.expire(cs)
	}
	m.undo, m.redo = nil, nil
}
