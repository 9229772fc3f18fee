package repository

import "context"

// Store is the persistence boundary used by the command/query wrapper.
// A Store is a unit of work: writes are staged and flushed by SaveChanges.
// Stores are not safe for concurrent use; use one per request.
type Store interface {
	// SaveChanges flushes staged writes and returns the number of
	// affected records.
	SaveChanges(ctx context.Context) (int64, error)

	// HasChanges reports whether writes are staged but not yet saved.
	HasChanges() bool

	// Begin starts a transaction. SaveChanges runs inside it until
	// Commit or Rollback.
	Begin(ctx context.Context) error

	// Commit commits the running transaction.
	Commit(ctx context.Context) error

	// Rollback aborts the running transaction and drops staged writes.
	Rollback(ctx context.Context) error
}
