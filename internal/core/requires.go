package core

import (
	"context"
	"errors"
)

// RequiresScope runs fn inside a scope. When a scope is already open fn
// joins it; otherwise a new scope is opened, committed when fn succeeds and
// closed.
func RequiresScope(ctx context.Context, s *Session, description string, fn func() error) error {
	return RequiresScopeIf(ctx, s, description, func() (bool, error) {
		if err := fn(); err != nil {
			return false, err
		}
		return true, nil
	})
}

// RequiresScopeIf is RequiresScope for work that may decline: the scope it
// opens is committed only when fn reports true without error.
func RequiresScopeIf(ctx context.Context, s *Session, description string, fn func() (bool, error)) (err error) {
	if s.Current() != nil {
		_, err = fn()
		return err
	}
	sc, err := s.Begin(ctx, description)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sc.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	ok, err := fn()
	if err != nil || !ok {
		return err
	}
	return sc.Commit(ctx)
}
