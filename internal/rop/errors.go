package rop

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidState is returned for programmer errors such as building a
// failure without errors or reading the value of a failed result.
var ErrInvalidState = errors.New("invalid result state")

// Kind represents where an error originated.
// Each kind maps to a default HTTP status code.
type Kind int

const (
	// KindBusinessRule represents business rule violations.
	KindBusinessRule Kind = iota

	// KindValidation represents input validation failures.
	// The presentation layer renders these as per-field problems.
	KindValidation

	// KindNotFound represents lookups that matched nothing.
	KindNotFound

	// KindConflict represents concurrency and persistence conflicts.
	KindConflict

	// KindCancelled represents a chain aborted by its caller.
	KindCancelled

	// KindInternal represents unexpected faults.
	KindInternal
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindBusinessRule:
		return "BUSINESS_RULE"
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindCancelled:
		return "CANCELLED"
	case KindInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// HTTPStatus returns the default HTTP status code for this error kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error. It is a comparable value type: two errors with
// the same kind, code and message are interchangeable.
type Error struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// String renders the error as "code: message".
func (e Error) String() string {
	return e.Code + ": " + e.Message
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.String()
}

// IsValidation reports whether the error came from input validation.
func (e Error) IsValidation() bool {
	return e.Kind == KindValidation
}

// WithStatus attaches a transport status to the error.
func (e Error) WithStatus(status int) HTTPError {
	return HTTPError{Error: e, StatusCode: status}
}

// HTTP attaches the default status of the error's kind.
func (e Error) HTTP() HTTPError {
	return e.WithStatus(e.Kind.HTTPStatus())
}

// NewError creates a business rule error.
func NewError(code, message string) Error {
	return Error{Kind: KindBusinessRule, Code: code, Message: message}
}

// ValidationError creates an error tagged as an input validation failure.
func ValidationError(code, message string) Error {
	return Error{Kind: KindValidation, Code: code, Message: message}
}

// NotFoundError creates an error for lookups that matched nothing.
func NotFoundError(code, message string) Error {
	return Error{Kind: KindNotFound, Code: code, Message: message}
}

// ConflictError creates an error for persistence or concurrency conflicts.
func ConflictError(code, message string) Error {
	return Error{Kind: KindConflict, Code: code, Message: message}
}

// InternalError creates an error for unexpected faults.
func InternalError(code, message string) Error {
	return Error{Kind: KindInternal, Code: code, Message: message}
}

// HTTPError is a domain error paired with the status to surface at the
// transport boundary.
type HTTPError struct {
	Error      Error
	StatusCode int
}

// String renders the error as "HttpErrorCode(status) => code: message".
func (e HTTPError) String() string {
	return fmt.Sprintf("HttpErrorCode(%d) => %s", e.StatusCode, e.Error)
}

// Well-known error codes
const (
	CodeCancelled              = "Cancelled"
	CodeUnhandledException     = "UnhandledException"
	CodeEntityNotFound         = "Entity.NotFound"
	CodeSaveError              = "Save.Error"
	CodeConflict               = "Entity.Conflict"
	CodeInconsistentParameters = "InconsistentParameters"
	CodeSortByInvalid          = "SortByInvalid"
	CodeInvalidPage            = "Page.Invalid"
	CodeInvalidPageSize        = "PageSize.Invalid"
	CodeInvalidBody            = "Body.Invalid"
	CodeUnknown                = "Unknown"
)

// Cancelled is returned when the caller's context is done before work starts.
func Cancelled() HTTPError {
	return Error{
		Kind:    KindCancelled,
		Code:    CodeCancelled,
		Message: "The operation was cancelled.",
	}.WithStatus(http.StatusRequestTimeout)
}

// UnhandledException wraps a fault message. The message is kept verbatim.
func UnhandledException(message string) HTTPError {
	return InternalError(CodeUnhandledException, message).WithStatus(http.StatusInternalServerError)
}

// EntityNotFound is returned when a single-entity lookup finds nothing.
func EntityNotFound(entity string) HTTPError {
	return NotFoundError(CodeEntityNotFound, fmt.Sprintf("%s was not found.", entity)).
		WithStatus(http.StatusNotFound)
}

// SaveFailed is returned when a save affected no rows although changes were pending.
func SaveFailed() HTTPError {
	return ConflictError(CodeSaveError, "No changes were saved.").WithStatus(http.StatusConflict)
}

// Conflict is returned for duplicate keys and optimistic lock failures.
func Conflict(message string) HTTPError {
	return ConflictError(CodeConflict, message).WithStatus(http.StatusConflict)
}

// InconsistentParameters is returned when paired parameters are half set.
func InconsistentParameters(message string) HTTPError {
	return ValidationError(CodeInconsistentParameters, message).WithStatus(http.StatusBadRequest)
}

// SortByInvalid is returned when a sort field does not exist on the entity.
func SortByInvalid(name string) HTTPError {
	return ValidationError(CodeSortByInvalid, fmt.Sprintf("Cannot sort by %q.", name)).
		WithStatus(http.StatusBadRequest)
}
