// Package repository wraps commands and queries against a Store so that
// faults become rop failures at this boundary and nowhere above it.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.railyard.dev/internal/rop"
	"go.railyard.dev/internal/specification"
)

// SavePolicy decides the outcome of a command from the number of records
// its save affected and the command's own result.
type SavePolicy[T any] func(changes int64, result rop.Result[T]) rop.Result[T]

// Repository binds a Store to the entity it serves.
type Repository struct {
	store  Store
	entity string
	logger *slog.Logger
}

// New creates a repository for entity backed by store.
func New(store Store, entity string) *Repository {
	return &Repository{
		store:  store,
		entity: entity,
		logger: slog.Default().With("entity", entity),
	}
}

// WithLogger returns a copy of the repository that logs to logger.
func (r *Repository) WithLogger(logger *slog.Logger) *Repository {
	cp := *r
	cp.logger = logger.With("entity", r.entity)
	return &cp
}

// Store returns the underlying unit of work.
func (r *Repository) Store() Store {
	return r.store
}

// Entity returns the entity name used in errors and metrics.
func (r *Repository) Entity() string {
	return r.entity
}

// DefaultSavePolicy succeeds when nothing was staged or when the save
// affected at least one record. A save of zero records with staged changes
// means the target row did not exist, which is reported as Save.Error.
func DefaultSavePolicy[T any](hasChanges bool) SavePolicy[T] {
	return func(changes int64, result rop.Result[T]) rop.Result[T] {
		if !hasChanges || changes > 0 {
			return result
		}
		return rop.FromHTTPError[T](rop.SaveFailed())
	}
}

// TryCommand runs action and, when it succeeds, saves the store's staged
// changes. A nil policy selects DefaultSavePolicy.
func TryCommand[T any](
	ctx context.Context,
	repo *Repository,
	action func(context.Context) rop.Result[T],
	policy SavePolicy[T],
) rop.Result[T] {
	return instrumentResult(ctx, repo.logger, repo.entity, "command", func() rop.Result[T] {
		r := rop.Bind(rop.CheckCancellation(ctx), func(struct{}) rop.Result[T] {
			return guard(ctx, repo, action)
		})
		return saveChanges(ctx, repo, r, policy)
	})
}

// TryCommandValue is TryCommand for actions that return a plain value and error.
func TryCommandValue[T any](
	ctx context.Context,
	repo *Repository,
	action func(context.Context) (T, error),
	policy SavePolicy[T],
) rop.Result[T] {
	return TryCommand(ctx, repo, lift(repo, action), policy)
}

// TrySaveChanges saves staged changes for a successful result and applies
// the save policy. Failed results are returned without saving.
func TrySaveChanges[T any](
	ctx context.Context,
	repo *Repository,
	result rop.Result[T],
	policy SavePolicy[T],
) rop.Result[T] {
	return instrumentResult(ctx, repo.logger, repo.entity, "save", func() rop.Result[T] {
		return saveChanges(ctx, repo, result, policy)
	})
}

// TryQuery runs a read and folds faults into the result. Nothing is saved.
func TryQuery[T any](
	ctx context.Context,
	repo *Repository,
	query func(context.Context) rop.Result[T],
) rop.Result[T] {
	return instrumentResult(ctx, repo.logger, repo.entity, "query", func() rop.Result[T] {
		return rop.Bind(rop.CheckCancellation(ctx), func(struct{}) rop.Result[T] {
			return guard(ctx, repo, query)
		})
	})
}

// TryQueryValue is TryQuery for reads that return a plain value and error.
func TryQueryValue[T any](
	ctx context.Context,
	repo *Repository,
	query func(context.Context) (T, error),
) rop.Result[T] {
	return TryQuery(ctx, repo, lift(repo, query))
}

// TryPagedQuery validates spec, applies it to source and loads the page
// inside TryQuery. Invalid specifications fail with 400 before any read.
func TryPagedQuery[T any](
	ctx context.Context,
	repo *Repository,
	source specification.Query[T],
	spec specification.SortedAndPaged[T],
) rop.Result[specification.PagedList[T]] {
	return rop.Bind(spec.Apply(source), func(shaped specification.Query[T]) rop.Result[specification.PagedList[T]] {
		return TryQueryValue(ctx, repo, func(ctx context.Context) (specification.PagedList[T], error) {
			return specification.ToPagedList(ctx, source, shaped, spec.Paging)
		})
	})
}

// BeginTransaction starts a transaction on the store.
func (r *Repository) BeginTransaction(ctx context.Context) rop.Result[struct{}] {
	return r.transactionStep(ctx, "begin", r.store.Begin)
}

// CommitTransaction commits the running transaction.
func (r *Repository) CommitTransaction(ctx context.Context) rop.Result[struct{}] {
	return r.transactionStep(ctx, "commit", r.store.Commit)
}

// RollbackTransaction aborts the running transaction. A rollback fault is
// logged and returned as a failure, never raised.
func (r *Repository) RollbackTransaction(ctx context.Context) rop.Result[struct{}] {
	res := r.transactionStep(ctx, "rollback", r.store.Rollback)
	if first, failed := res.FirstError(); failed {
		r.logger.ErrorContext(ctx, "Transaction rollback failed", "error", first.Message)
	}
	return res
}

// WithTransaction runs fn inside a transaction. The transaction is committed
// when fn succeeds and rolled back otherwise; fn's failure is returned
// unchanged even if the rollback fails too.
func WithTransaction[T any](
	ctx context.Context,
	repo *Repository,
	fn func(context.Context) rop.Result[T],
) rop.Result[T] {
	begun := repo.BeginTransaction(ctx)
	result := rop.Bind(begun, func(struct{}) rop.Result[T] {
		return guard(ctx, repo, fn)
	})
	if begun.IsFailure() {
		return result
	}
	if result.IsFailure() {
		// Use a fresh context: the chain's context may be the reason we failed.
		repo.RollbackTransaction(context.WithoutCancel(ctx))
		return result
	}

	committed := repo.CommitTransaction(ctx)
	if committed.IsFailure() {
		repo.RollbackTransaction(context.WithoutCancel(ctx))
		return rop.Bind(committed, func(struct{}) rop.Result[T] { return result })
	}
	return result
}

func (r *Repository) transactionStep(ctx context.Context, operation string, step func(context.Context) error) rop.Result[struct{}] {
	return guard(ctx, r, func(ctx context.Context) rop.Result[struct{}] {
		err := InstrumentVoid(ctx, r.entity, operation, func() error { return step(ctx) })
		if err != nil {
			return FaultResult[struct{}](r.entity, fmt.Errorf("%s transaction: %w", operation, err))
		}
		return rop.Success(struct{}{})
	})
}

func saveChanges[T any](ctx context.Context, repo *Repository, result rop.Result[T], policy SavePolicy[T]) rop.Result[T] {
	if result.IsFailure() {
		return result
	}
	if policy == nil {
		policy = DefaultSavePolicy[T](repo.store.HasChanges())
	}
	return guard(ctx, repo, func(ctx context.Context) rop.Result[T] {
		changes, err := Instrument(ctx, repo.entity, "save_changes", func() (int64, error) {
			return repo.store.SaveChanges(ctx)
		})
		if err != nil {
			return FaultResult[T](repo.entity, fmt.Errorf("save changes: %w", err))
		}
		return policy(changes, result)
	})
}

// guard runs fn and turns a panic into an UnhandledException failure.
func guard[T any](ctx context.Context, repo *Repository, fn func(context.Context) rop.Result[T]) (result rop.Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			repo.logger.ErrorContext(ctx, "Recovered panic in repository call", "panic", p)
			result = rop.FromHTTPError[T](rop.UnhandledException(fmt.Sprint(p)))
		}
	}()
	return fn(ctx)
}

func lift[T any](repo *Repository, fn func(context.Context) (T, error)) func(context.Context) rop.Result[T] {
	return func(ctx context.Context) rop.Result[T] {
		v, err := fn(ctx)
		if err != nil {
			return FaultResult[T](repo.entity, err)
		}
		return rop.Success(v)
	}
}

// FaultResult converts a store error into a failure:
// cancellation becomes Cancelled (408), ErrNotFound becomes Entity.NotFound
// (404), duplicate keys and lock failures become conflicts (409) and
// everything else becomes UnhandledException (500) with the error text.
func FaultResult[T any](entity string, err error) rop.Result[T] {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return rop.FromHTTPError[T](rop.Cancelled())
	case errors.Is(err, ErrNotFound):
		return rop.FromHTTPError[T](rop.EntityNotFound(entity))
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrOptimisticLock):
		return rop.FromHTTPError[T](rop.Conflict(err.Error()))
	default:
		return rop.FromHTTPError[T](rop.UnhandledException(err.Error()))
	}
}
