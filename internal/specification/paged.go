package specification

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"go.railyard.dev/internal/rop"
)

// PagedList is one page of items plus the totals needed to navigate.
type PagedList[T any] struct {
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	Items      []T   `json:"items"`
}

// NewPagedList builds the envelope for items out of totalItems. Without
// paging the whole set is one page.
func NewPagedList[T any](items []T, totalItems int64, paging Paging[T]) PagedList[T] {
	if items == nil {
		items = []T{}
	}
	if !paging.Requested() {
		return PagedList[T]{
			Page:       1,
			TotalPages: 1,
			PageSize:   int(totalItems),
			TotalItems: totalItems,
			Items:      items,
		}
	}

	pageSize := *paging.PageSize
	totalPages := int(totalItems / int64(pageSize))
	if totalItems%int64(pageSize) > 0 {
		totalPages++
	}

	return PagedList[T]{
		Page:       *paging.Page,
		TotalPages: totalPages,
		PageSize:   pageSize,
		TotalItems: totalItems,
		Items:      items,
	}
}

// ToPagedList counts source, materializes shaped (source after a
// specification was applied) and builds the envelope. Store errors are
// returned as is for the repository layer to map.
func ToPagedList[T any](ctx context.Context, source, shaped Query[T], paging Paging[T]) (PagedList[T], error) {
	total, err := source.Count(ctx)
	if err != nil {
		return PagedList[T]{}, err
	}
	items, err := shaped.List(ctx)
	if err != nil {
		return PagedList[T]{}, err
	}
	return NewPagedList(items, total, paging), nil
}

// Query parameter names read by ParseQuery.
const (
	ParamPage          = "page"
	ParamPageSize      = "pageSize"
	ParamSortBy        = "sortBy"
	ParamSortDirection = "sortDirection"
)

// ParseQuery reads paging and sorting parameters from a URL query. Absent
// parameters stay nil; consistency is left to Validate. Non-numeric paging
// values fail here.
func ParseQuery[T any](values url.Values) rop.Result[SortedAndPaged[T]] {
	var (
		spec SortedAndPaged[T]
		errs []rop.Error
	)

	page, err := optionalInt(values, ParamPage)
	if err != nil {
		errs = append(errs, rop.ValidationError(rop.CodeInvalidPage, "page must be an integer"))
	}
	pageSize, err := optionalInt(values, ParamPageSize)
	if err != nil {
		errs = append(errs, rop.ValidationError(rop.CodeInvalidPageSize, "pageSize must be an integer"))
	}
	if len(errs) > 0 {
		return rop.Failure[SortedAndPaged[T]](errs[0], errs[1:]...)
	}
	spec.Paging = Paging[T]{Page: page, PageSize: pageSize}

	if values.Has(ParamSortBy) {
		sortBy := values.Get(ParamSortBy)
		spec.Sorting.SortBy = &sortBy
	}
	if values.Has(ParamSortDirection) {
		dir := ParseDirection(values.Get(ParamSortDirection))
		spec.Sorting.Direction = &dir
	}
	return rop.Success(spec)
}

// ParseDirection maps "desc" or "descending" (any case) to Descending and
// everything else to Ascending.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending":
		return Descending
	default:
		return Ascending
	}
}

func optionalInt(values url.Values, key string) (*int, error) {
	if !values.Has(key) {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
	if err != nil {
		return nil, err
	}
	return &n, nil
}
