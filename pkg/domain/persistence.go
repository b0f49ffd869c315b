package domain

import "context"

// PersistentStore is a durable record backend. It hands out one Persister per
// outermost scope and serves records for loading.
type PersistentStore interface {
	// Begin opens the connection used by an outermost scope.
	Begin(ctx context.Context) (Persister, error)
	// LoadRecords returns every stored record of the given categories, or of
	// all categories when none are given.
	LoadRecords(ctx context.Context, categories ...Category) ([]Record, error)
	// GetRecord fetches one record.
	GetRecord(ctx context.Context, ref Ref) (Record, bool, error)
	Close() error
}

// Persister stages object changes and applies them atomically on Flush.
// Nothing staged is visible in storage until Flush succeeds.
type Persister interface {
	Save(added, updated []Object) error
	Delete(removed []Object) error
	// Flush applies everything staged since the last Flush or Discard. On
	// error storage is left untouched and the stage is kept for Discard.
	Flush(ctx context.Context) error
	// ResolvedID reports the storage-generated id of an object added in the
	// last successful Flush, when the store generates ids.
	ResolvedID(Object) (int64, bool)
	// Discard drops staged changes.
	Discard()
	Close() error
}
