// Package api renders rop results as HTTP responses and decodes request
// bodies into results.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.railyard.dev/internal/common/metrics"
	"go.railyard.dev/internal/rop"
)

// ProblemContentType is the media type of error bodies (RFC 9457).
const ProblemContentType = "application/problem+json"

const validationTitle = "One or more validation errors occurred."

// Problem is the error body for non-validation failures.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ValidationProblem is the error body when any error is a validation error.
// Errors maps each code to its messages in failure order.
type ValidationProblem struct {
	Type   string              `json:"type,omitempty"`
	Title  string              `json:"title"`
	Status int                 `json:"status"`
	Errors map[string][]string `json:"errors"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeBody(w, "application/json", status, data)
}

func writeBody(w http.ResponseWriter, contentType string, status int, data any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// DecodeJSON decodes JSON from a request body, rejecting unknown fields
// and trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// DecodeBody decodes the request body into a result. Malformed bodies fail
// with Body.Invalid at 400.
func DecodeBody[T any](r *http.Request) rop.Result[T] {
	var v T
	if err := DecodeJSON(r, &v); err != nil {
		return rop.Failure[T](rop.ValidationError(rop.CodeInvalidBody, err.Error()))
	}
	return rop.Success(v)
}

// WriteResult writes r's value with r's status on success. Failures become
// a ValidationProblem when any error is a validation error, otherwise a
// Problem titled by the first error code.
func WriteResult[T any](w http.ResponseWriter, r rop.Result[T]) {
	status := r.StatusCode()
	first, failed := r.FirstError()
	metrics.RecordResult(status, first.Code)

	if !failed {
		if status == http.StatusNoContent {
			w.WriteHeader(status)
			return
		}
		WriteJSON(w, status, r.MustValue())
		return
	}

	writeBody(w, ProblemContentType, status, problemFor(status, r.Errors()))
}

// WriteFailure writes a single error as a problem with status.
func WriteFailure(w http.ResponseWriter, status int, err rop.Error) {
	WriteResult(w, rop.FailureStatus[struct{}](status, err))
}

func problemFor(status int, errs []rop.Error) any {
	for _, e := range errs {
		if e.IsValidation() {
			return newValidationProblem(status, errs)
		}
	}

	messages := make([]string, len(errs))
	for i, e := range errs {
		messages[i] = e.Message
	}
	return Problem{
		Type:   typeFor(status),
		Title:  errs[0].Code,
		Status: status,
		Detail: strings.Join(messages, "\n"),
	}
}

func newValidationProblem(status int, errs []rop.Error) ValidationProblem {
	byCode := make(map[string][]string, len(errs))
	for _, e := range errs {
		byCode[e.Code] = append(byCode[e.Code], e.Message)
	}
	return ValidationProblem{
		Type:   typeFor(status),
		Title:  validationTitle,
		Status: status,
		Errors: byCode,
	}
}

// rfc9110Sections maps statuses to the RFC 9110 section describing them.
var rfc9110Sections = map[int]string{
	http.StatusBadRequest:          "15.5.1",
	http.StatusUnauthorized:        "15.5.2",
	http.StatusForbidden:           "15.5.4",
	http.StatusNotFound:            "15.5.5",
	http.StatusRequestTimeout:      "15.5.9",
	http.StatusConflict:            "15.5.10",
	http.StatusUnprocessableEntity: "15.5.21",
	http.StatusInternalServerError: "15.6.1",
}

func typeFor(status int) string {
	section, ok := rfc9110Sections[status]
	if !ok {
		return ""
	}
	return fmt.Sprintf("https://tools.ietf.org/html/rfc9110#section-%s", section)
}
