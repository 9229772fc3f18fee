package specification

import (
	"context"
	"slices"
)

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Query is a queryable source that a specification shapes before it is
// materialized. Implementations are immutable: every builder method returns
// a new query.
type Query[T any] interface {
	// OrderBy replaces any previous ordering.
	OrderBy(field *Field, dir Direction) Query[T]
	Skip(n int) Query[T]
	Take(n int) Query[T]
	// Count returns the number of matching items, ignoring Skip and Take.
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]T, error)
}

// SliceQuery is an in-memory Query over a slice.
type SliceQuery[T any] struct {
	items []T
	order *Field
	dir   Direction
	skip  int
	take  int
}

// FromSlice returns a query over items. The slice is not modified.
func FromSlice[T any](items []T) *SliceQuery[T] {
	return &SliceQuery[T]{items: items, take: -1}
}

func (q *SliceQuery[T]) OrderBy(field *Field, dir Direction) Query[T] {
	cp := *q
	cp.order = field
	cp.dir = dir
	return &cp
}

func (q *SliceQuery[T]) Skip(n int) Query[T] {
	cp := *q
	cp.skip = max(n, 0)
	return &cp
}

func (q *SliceQuery[T]) Take(n int) Query[T] {
	cp := *q
	cp.take = max(n, 0)
	return &cp
}

func (q *SliceQuery[T]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(q.items)), nil
}

func (q *SliceQuery[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := slices.Clone(q.items)
	if q.order != nil {
		slices.SortStableFunc(items, func(a, b T) int {
			c := q.order.Compare(a, b)
			if q.dir == Descending {
				return -c
			}
			return c
		})
	}

	if q.skip >= len(items) {
		return []T{}, nil
	}
	items = items[q.skip:]
	if q.take >= 0 && q.take < len(items) {
		items = items[:q.take]
	}
	return items, nil
}
