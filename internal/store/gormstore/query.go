package gormstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go.railyard.dev/internal/specification"
)

// Query is a specification.Query backed by a GORM statement. Sort fields
// are mapped to columns through the model's GORM schema.
type Query[T any] struct {
	db     *gorm.DB
	scopes []func(*gorm.DB) *gorm.DB
	order  *specification.Field
	desc   bool
	offset int
	limit  int
}

var _ specification.Query[struct{}] = (*Query[struct{}])(nil)

// From starts a query over T's table on the store's current connection.
// Scopes narrow the rows (filters, joins) for both Count and List.
func From[T any](s *Store, scopes ...func(*gorm.DB) *gorm.DB) *Query[T] {
	db := s.db
	if s.tx != nil {
		db = s.tx
	}
	return &Query[T]{db: db, scopes: scopes, offset: -1, limit: -1}
}

func (q *Query[T]) OrderBy(field *specification.Field, dir specification.Direction) specification.Query[T] {
	cp := *q
	cp.order = field
	cp.desc = dir == specification.Descending
	return &cp
}

func (q *Query[T]) Skip(n int) specification.Query[T] {
	cp := *q
	cp.offset = n
	return &cp
}

func (q *Query[T]) Take(n int) specification.Query[T] {
	cp := *q
	cp.limit = n
	return &cp
}

func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := q.filtered(q.db.WithContext(ctx)).Count(&n).Error
	return n, Translate(err)
}

func (q *Query[T]) List(ctx context.Context) ([]T, error) {
	var items []T
	err := q.shape(q.db.WithContext(ctx)).Find(&items).Error
	if err != nil {
		return nil, Translate(err)
	}
	return items, nil
}

func (q *Query[T]) filtered(db *gorm.DB) *gorm.DB {
	return db.Model(new(T)).Scopes(q.scopes...)
}

func (q *Query[T]) shape(db *gorm.DB) *gorm.DB {
	db = q.filtered(db)
	if q.order != nil {
		db = db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: q.column(db, q.order)},
			Desc:   q.desc,
		})
	}
	return db.Offset(q.offset).Limit(q.limit)
}

// column resolves the database column for field, falling back to GORM's
// naming strategy when the schema cannot be parsed.
func (q *Query[T]) column(db *gorm.DB, field *specification.Field) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err == nil {
		if f := stmt.Schema.LookUpField(field.Name); f != nil && f.DBName != "" {
			return f.DBName
		}
	}
	return db.NamingStrategy.ColumnName("", field.Name)
}
