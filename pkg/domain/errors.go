package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveScope is returned when an operation needs an open scope.
	ErrNoActiveScope = errors.New("no active scope")
	// ErrScopeNotCurrent is returned when a scope other than the innermost one
	// is committed or closed.
	ErrScopeNotCurrent = errors.New("scope is not the current scope")
	// ErrScopeClosed is returned when a closed scope is used.
	ErrScopeClosed = errors.New("scope already closed")
	// ErrUnknownCategory is returned when no constructor is registered.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrHistoryEmpty is returned by Undo or Redo with nothing to replay.
	ErrHistoryEmpty = errors.New("history empty")
)

// ConsistencyError reports an identifier bookkeeping violation, such as a
// loaded id that is already in use or a reclaimed id that was already free.
// These indicate corruption and are surfaced, never corrected.
type ConsistencyError struct {
	Op       string
	Category Category
	ID       int64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("identifier consistency violation: %s %s", e.Op, Key(e.Category, e.ID))
}
