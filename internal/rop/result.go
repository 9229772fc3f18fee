// Package rop implements a railway-oriented result type and the combinators
// used to thread failures through command and query chains without panics.
//
// A Result is either on the success track, carrying a value, or on the
// failure track, carrying a non-empty ordered list of errors. Every result
// also carries the HTTP status code to surface at the transport boundary.
package rop

import (
	"fmt"
	"net/http"
)

// Result represents the outcome of one step in a chain.
//
// The zero value is not a valid result; build results with Success,
// Failure and their variants. Results are immutable: combinators always
// return a new Result.
type Result[T any] struct {
	value  T
	errs   []Error
	status int
}

// Success creates a successful result with status 200.
func Success[T any](value T) Result[T] {
	return SuccessStatus(value, http.StatusOK)
}

// SuccessStatus creates a successful result with an explicit status code.
func SuccessStatus[T any](value T, status int) Result[T] {
	return Result[T]{value: value, status: status}
}

// Failure creates a failed result. The status is taken from the first
// error's kind.
func Failure[T any](err Error, more ...Error) Result[T] {
	return FailureStatus[T](err.Kind.HTTPStatus(), err, more...)
}

// FailureStatus creates a failed result with an explicit status code.
func FailureStatus[T any](status int, err Error, more ...Error) Result[T] {
	errs := make([]Error, 0, len(more)+1)
	errs = append(errs, err)
	errs = append(errs, more...)
	return Result[T]{errs: errs, status: status}
}

// FromHTTPError creates a failed result from an error paired with a status.
func FromHTTPError[T any](err HTTPError) Result[T] {
	return FailureStatus[T](err.StatusCode, err.Error)
}

// NewFailure creates a failed result from a list of errors.
// An empty list is rejected with ErrInvalidState; the result returned with
// it is still a failure (UnhandledException, 500), never a success.
func NewFailure[T any](errs []Error, status int) (Result[T], error) {
	if len(errs) == 0 {
		err := fmt.Errorf("%w: a failure needs at least one error", ErrInvalidState)
		return FromHTTPError[T](UnhandledException(err.Error())), err
	}
	return FailureStatus[T](status, errs[0], errs[1:]...), nil
}

// IsSuccess returns true if the result has no errors.
func (r Result[T]) IsSuccess() bool {
	return len(r.errs) == 0
}

// IsFailure returns true if the result carries errors.
func (r Result[T]) IsFailure() bool {
	return len(r.errs) > 0
}

// StatusCode returns the transport status of the result.
func (r Result[T]) StatusCode() int {
	return r.status
}

// Errors returns a copy of the error list. It is empty on success.
func (r Result[T]) Errors() []Error {
	if len(r.errs) == 0 {
		return nil
	}
	out := make([]Error, len(r.errs))
	copy(out, r.errs)
	return out
}

// FirstError returns the first error and true, or false on success.
func (r Result[T]) FirstError() (Error, bool) {
	if len(r.errs) == 0 {
		return Error{}, false
	}
	return r.errs[0], true
}

// Value returns the success value. Reading the value of a failed result
// returns ErrInvalidState.
func (r Result[T]) Value() (T, error) {
	if r.IsFailure() {
		var zero T
		return zero, fmt.Errorf("%w: value read from a failed result (%s)", ErrInvalidState, r.errs[0])
	}
	return r.value, nil
}

// MustValue returns the success value and panics on a failed result.
func (r Result[T]) MustValue() T {
	v, err := r.Value()
	if err != nil {
		panic(err)
	}
	return v
}

// OrElse returns the success value or the provided default if failure.
func (r Result[T]) OrElse(defaultValue T) T {
	if r.IsSuccess() {
		return r.value
	}
	return defaultValue
}

// String renders the result for logs.
func (r Result[T]) String() string {
	if r.IsSuccess() {
		return fmt.Sprintf("Success(%d, %v)", r.status, r.value)
	}
	return fmt.Sprintf("Failure(%d, %v)", r.status, r.errs)
}

// Match applies one of two functions depending on success/failure state.
func Match[T, U any](r Result[T], onSuccess func(T) U, onFailure func([]Error) U) U {
	if r.IsSuccess() {
		return onSuccess(r.value)
	}
	return onFailure(r.Errors())
}

// propagate re-types a failed result, keeping its errors and status.
func propagate[U, T any](r Result[T]) Result[U] {
	return Result[U]{errs: r.errs, status: r.status}
}
