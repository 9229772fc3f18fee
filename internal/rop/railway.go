package rop

import (
	"context"
	"net/http"
)

// Bind chains result-returning steps.
// On success the continuation's result is returned as-is, so the next step
// decides the value type and status. On failure the original errors and
// status are carried over and f is never called.
func Bind[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.IsFailure() {
		return propagate[U](r)
	}
	return f(r.value)
}

// Map transforms a successful value, keeping the status code.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.IsFailure() {
		return propagate[U](r)
	}
	return SuccessStatus(f(r.value), r.status)
}

// Tap runs a side effect on success and returns r unchanged.
func Tap[T any](r Result[T], f func(T)) Result[T] {
	if r.IsSuccess() {
		f(r.value)
	}
	return r
}

// Verify turns a success into a failure carrying onFailure when pred is
// false. Failed results pass through without evaluating pred.
func Verify[T any](r Result[T], pred func(T) bool, onFailure HTTPError) Result[T] {
	if r.IsFailure() || pred(r.value) {
		return r
	}
	return FromHTTPError[T](onFailure)
}

// ValidationOutcome is the result of validating an input.
// An empty list of failures means the input is valid.
type ValidationOutcome interface {
	Failures() []Error
}

// Validate collects the failures of every outcome. If r already failed or
// any outcome has failures, the union of all validation failures is returned
// at status 400. Otherwise r is returned unchanged.
func Validate[T any](r Result[T], outcomes ...ValidationOutcome) Result[T] {
	var failures []Error
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		failures = append(failures, o.Failures()...)
	}
	// A failed source with passing outcomes keeps its own errors.
	if len(failures) == 0 {
		return r
	}
	return FailureStatus[T](http.StatusBadRequest, failures[0], failures[1:]...)
}

// DoubleMap maps the success track with onSuccess, or runs onFailure for its
// side effect and keeps the original errors and status.
func DoubleMap[T, U any](r Result[T], onSuccess func(T) U, onFailure func([]Error)) Result[U] {
	if r.IsFailure() {
		onFailure(r.Errors())
		return propagate[U](r)
	}
	return SuccessStatus(onSuccess(r.value), r.status)
}

// CheckCancellation returns Cancelled at 408 when ctx is already done.
func CheckCancellation(ctx context.Context) Result[struct{}] {
	if ctx.Err() != nil {
		return FromHTTPError[struct{}](Cancelled())
	}
	return Success(struct{}{})
}

// BindCtx is Bind for continuations that do I/O. The continuation is not
// started when ctx is already done.
func BindCtx[T, U any](ctx context.Context, r Result[T], f func(context.Context, T) Result[U]) Result[U] {
	if r.IsFailure() {
		return propagate[U](r)
	}
	if ctx.Err() != nil {
		return FromHTTPError[U](Cancelled())
	}
	return f(ctx, r.value)
}

// MapCtx is Map for continuations that need the chain's context.
func MapCtx[T, U any](ctx context.Context, r Result[T], f func(context.Context, T) U) Result[U] {
	if r.IsFailure() {
		return propagate[U](r)
	}
	if ctx.Err() != nil {
		return FromHTTPError[U](Cancelled())
	}
	return SuccessStatus(f(ctx, r.value), r.status)
}
