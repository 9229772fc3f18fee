package repository

import "errors"

// Common repository errors. Store adapters translate driver errors into
// these so the command/query wrapper can classify faults without knowing
// the driver.
var (
	// ErrNotFound indicates the requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateKey indicates a unique constraint violation
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrOptimisticLock indicates a concurrent modification conflict
	ErrOptimisticLock = errors.New("optimistic lock failed")

	// ErrNoTransaction indicates commit or rollback without a running transaction
	ErrNoTransaction = errors.New("no transaction in progress")

	// ErrTransactionActive indicates a second begin on the same store
	ErrTransactionActive = errors.New("transaction already in progress")
)
