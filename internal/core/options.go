package core

import (
	"go.uber.org/zap"

	"trackcore/pkg/domain"
)

// IDStrategy decides where new objects get their ids.
type IDStrategy string

const (
	// IDStrategyAllocator draws ids from the session's per-category allocators.
	IDStrategyAllocator IDStrategy = "allocator"
	// IDStrategyStorage hands out negative placeholders and adopts the ids
	// the store assigns on flush. The store must generate ids.
	IDStrategyStorage IDStrategy = "storage"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used around commits and loads.
func WithTracer(t Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithHistory replaces the default history manager.
func WithHistory(h domain.HistoryStore) Option {
	return func(s *Session) {
		if h != nil {
			s.history = h
		}
	}
}

// WithIDStrategy selects how ids are assigned to new objects.
func WithIDStrategy(strategy IDStrategy) Option {
	return func(s *Session) {
		if strategy != "" {
			s.strategy = strategy
		}
	}
}
