// Package validation is the input validation boundary. Validators return an
// Outcome, a list of (code, message) failures that the rop package folds into
// a chain with rop.Validate.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.railyard.dev/internal/rop"
)

// Outcome is the list of failures produced by validating one input.
// An empty outcome means the input is valid.
type Outcome []rop.Error

// Failures implements rop.ValidationOutcome.
func (o Outcome) Failures() []rop.Error {
	return o
}

// IsValid returns true if there are no failures.
func (o Outcome) IsValid() bool {
	return len(o) == 0
}

// Validator validates values of type T.
type Validator[T any] interface {
	Validate(v T) Outcome
}

// Rule checks one property of a value. It returns a failure and true when
// the value breaks the rule.
type Rule[T any] func(v T) (rop.Error, bool)

// Rules is a Validator built from an ordered list of rules.
// Every rule runs; failures are reported in rule order.
type Rules[T any] []Rule[T]

// Validate runs every rule against v.
func (rs Rules[T]) Validate(v T) Outcome {
	var out Outcome
	for _, rule := range rs {
		if f, failed := rule(v); failed {
			out = append(out, f)
		}
	}
	return out
}

// Required fails when the selected string is blank.
func Required[T any](field string, get func(T) string) Rule[T] {
	return func(v T) (rop.Error, bool) {
		if strings.TrimSpace(get(v)) == "" {
			return rop.ValidationError(field, fmt.Sprintf("'%s' must not be empty.", field)), true
		}
		return rop.Error{}, false
	}
}

// MaxLength fails when the selected string has more than max runes.
func MaxLength[T any](field string, max int, get func(T) string) Rule[T] {
	return func(v T) (rop.Error, bool) {
		if utf8.RuneCountInString(get(v)) > max {
			return rop.ValidationError(field, fmt.Sprintf("'%s' must be %d characters or fewer.", field, max)), true
		}
		return rop.Error{}, false
	}
}

// Positive fails when the selected number is not greater than zero.
func Positive[T any](field string, get func(T) int64) Rule[T] {
	return func(v T) (rop.Error, bool) {
		if get(v) <= 0 {
			return rop.ValidationError(field, fmt.Sprintf("'%s' must be greater than 0.", field)), true
		}
		return rop.Error{}, false
	}
}

// NotNegative fails when the selected number is below zero.
func NotNegative[T any](field string, get func(T) int64) Rule[T] {
	return func(v T) (rop.Error, bool) {
		if get(v) < 0 {
			return rop.ValidationError(field, fmt.Sprintf("'%s' must not be negative.", field)), true
		}
		return rop.Error{}, false
	}
}

// AtMost fails when the selected number is greater than max.
func AtMost[T any](field string, max int64, get func(T) int64) Rule[T] {
	return func(v T) (rop.Error, bool) {
		if get(v) > max {
			return rop.ValidationError(field, fmt.Sprintf("'%s' must be %d or less.", field, max)), true
		}
		return rop.Error{}, false
	}
}

// Must fails with code and message when pred is false.
func Must[T any](code, message string, pred func(T) bool) Rule[T] {
	return func(v T) (rop.Error, bool) {
		if !pred(v) {
			return rop.ValidationError(code, message), true
		}
		return rop.Error{}, false
	}
}

// ParseFailure turns a "code: message" string into a validation error.
// The string is split on the first colon; without a colon the whole string
// is the message and the code is "Unknown".
func ParseFailure(s string) rop.Error {
	code, message, found := strings.Cut(s, ":")
	if !found {
		return rop.ValidationError(rop.CodeUnknown, strings.TrimSpace(s))
	}
	return rop.ValidationError(strings.TrimSpace(code), strings.TrimSpace(message))
}

// FromMessages builds an outcome from "code: message" strings.
func FromMessages(messages ...string) Outcome {
	out := make(Outcome, 0, len(messages))
	for _, m := range messages {
		out = append(out, ParseFailure(m))
	}
	return out
}
