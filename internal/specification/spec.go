// Package specification holds validated sort and page descriptors that
// shape a Query before it is materialized.
package specification

import (
	"fmt"
	"math"

	"go.railyard.dev/internal/rop"
)

// Specification validates itself and then shapes a query. Apply always
// validates first and never touches the query when validation fails.
type Specification[T any] interface {
	Validate() rop.Result[struct{}]
	Apply(q Query[T]) rop.Result[Query[T]]
}

// Paging selects one page of a query. Page is 1-based. Both fields must be
// set together or left nil together.
type Paging[T any] struct {
	Page     *int
	PageSize *int
}

// Requested reports whether paging was asked for.
func (p Paging[T]) Requested() bool {
	return p.Page != nil && p.PageSize != nil
}

func (p Paging[T]) Validate() rop.Result[struct{}] {
	if (p.Page == nil) != (p.PageSize == nil) {
		return rop.FromHTTPError[struct{}](rop.InconsistentParameters("page and pageSize must be provided together"))
	}
	if !p.Requested() {
		return rop.Success(struct{}{})
	}

	var errs []rop.Error
	if *p.Page <= 0 {
		errs = append(errs, rop.ValidationError(rop.CodeInvalidPage, "page must be greater than zero"))
	}
	if *p.PageSize <= 0 {
		errs = append(errs, rop.ValidationError(rop.CodeInvalidPageSize, "pageSize must be greater than zero"))
	}
	// The skip offset (page-1)*pageSize must fit in an int.
	if page, size := *p.Page, *p.PageSize; len(errs) == 0 && page-1 > math.MaxInt/size {
		errs = append(errs, rop.ValidationError(rop.CodeInvalidPage, "page is out of range for the page size"))
	}
	if len(errs) > 0 {
		return rop.Failure[struct{}](errs[0], errs[1:]...)
	}
	return rop.Success(struct{}{})
}

func (p Paging[T]) Apply(q Query[T]) rop.Result[Query[T]] {
	return rop.Map(p.Validate(), func(struct{}) Query[T] {
		if !p.Requested() {
			return q
		}
		return q.Skip((*p.Page - 1) * *p.PageSize).Take(*p.PageSize)
	})
}

// Sorting orders a query by one exported field of T. SortBy and Direction
// must be set together or left nil together.
type Sorting[T any] struct {
	SortBy    *string
	Direction *Direction
}

func (s Sorting[T]) Validate() rop.Result[struct{}] {
	_, res := s.resolve()
	return res
}

func (s Sorting[T]) Apply(q Query[T]) rop.Result[Query[T]] {
	field, res := s.resolve()
	return rop.Map(res, func(struct{}) Query[T] {
		if field == nil {
			return q
		}
		dir := Ascending
		if *s.Direction == Descending {
			dir = Descending
		}
		return q.OrderBy(field, dir)
	})
}

func (s Sorting[T]) resolve() (*Field, rop.Result[struct{}]) {
	if (s.SortBy == nil) != (s.Direction == nil) {
		return nil, rop.FromHTTPError[struct{}](rop.InconsistentParameters("sortBy and sortDirection must be provided together"))
	}
	if s.SortBy == nil {
		return nil, rop.Success(struct{}{})
	}
	field, ok := ResolveField[T](*s.SortBy)
	if !ok {
		return nil, rop.FromHTTPError[struct{}](rop.SortByInvalid(*s.SortBy))
	}
	return field, rop.Success(struct{}{})
}

// SortedAndPaged sorts and then pages. Sorting is validated first, so its
// failures are never hidden behind paging failures.
type SortedAndPaged[T any] struct {
	Sorting Sorting[T]
	Paging  Paging[T]
}

func (s SortedAndPaged[T]) Validate() rop.Result[struct{}] {
	return rop.Bind(s.Sorting.Validate(), func(struct{}) rop.Result[struct{}] {
		return s.Paging.Validate()
	})
}

func (s SortedAndPaged[T]) Apply(q Query[T]) rop.Result[Query[T]] {
	return rop.Bind(s.Sorting.Apply(q), s.Paging.Apply)
}

func (s SortedAndPaged[T]) String() string {
	return fmt.Sprintf("sort=%s page=%s", describe(s.Sorting.SortBy, s.Sorting.Direction), describe(s.Paging.Page, s.Paging.PageSize))
}

func describe[A, B any](a *A, b *B) string {
	if a == nil || b == nil {
		return "none"
	}
	return fmt.Sprintf("%v/%v", *a, *b)
}
