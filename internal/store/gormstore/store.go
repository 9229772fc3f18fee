package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"go.railyard.dev/internal/common/repository"
)

// Op is a staged write. It returns the gorm result so the affected row
// count can be read after it runs.
type Op func(tx *gorm.DB) *gorm.DB

// Store is a unit of work over a GORM connection. Writes are staged with
// Stage and its helpers and only reach the database on SaveChanges. A Store
// is meant for one request and is not safe for concurrent use.
type Store struct {
	db  *gorm.DB
	tx  *gorm.DB
	ops []Op
}

var _ repository.Store = (*Store)(nil)

// New creates a Store on db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the connection reads should use: the running transaction when
// there is one.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	if s.tx != nil {
		return s.tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// Stage queues op for the next SaveChanges.
func (s *Store) Stage(op Op) {
	s.ops = append(s.ops, op)
}

// Create stages an insert of value.
func (s *Store) Create(value any) {
	s.Stage(func(tx *gorm.DB) *gorm.DB { return tx.Create(value) })
}

// Updates stages a column update on the rows of model matching query.
func (s *Store) Updates(model any, updates map[string]any, query any, args ...any) {
	s.Stage(func(tx *gorm.DB) *gorm.DB {
		return tx.Model(model).Where(query, args...).Updates(updates)
	})
}

// Delete stages a delete of the rows of model matching query.
func (s *Store) Delete(model any, query any, args ...any) {
	s.Stage(func(tx *gorm.DB) *gorm.DB {
		return tx.Where(query, args...).Delete(model)
	})
}

// HasChanges reports whether writes are staged.
func (s *Store) HasChanges() bool {
	return len(s.ops) > 0
}

// SaveChanges runs the staged writes in order and returns the total number
// of affected rows. Outside an explicit transaction the writes run in one
// of their own. Staged writes are discarded whatever the outcome.
func (s *Store) SaveChanges(ctx context.Context) (int64, error) {
	ops := s.ops
	s.ops = nil
	if len(ops) == 0 {
		return 0, nil
	}

	var total int64
	run := func(tx *gorm.DB) error {
		for _, op := range ops {
			res := op(tx)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	}

	var err error
	if s.tx != nil {
		err = run(s.tx.WithContext(ctx))
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return 0, Translate(err)
	}
	return total, nil
}

// Begin starts an explicit transaction.
func (s *Store) Begin(ctx context.Context) error {
	if s.tx != nil {
		return repository.ErrTransactionActive
	}
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return Translate(tx.Error)
	}
	s.tx = tx
	return nil
}

// Commit commits the explicit transaction.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return repository.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return Translate(tx.Commit().Error)
}

// Rollback aborts the explicit transaction and drops staged writes.
func (s *Store) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return repository.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	s.ops = nil
	return Translate(tx.Rollback().Error)
}

// Translate maps GORM and PostgreSQL errors onto repository sentinels.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", repository.ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicateKey, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
