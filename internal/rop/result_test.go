package rop

import (
	"errors"
	"net/http"
	"reflect"
	"testing"
)

func TestSuccess(t *testing.T) {
	r := Success(42)

	if !r.IsSuccess() || r.IsFailure() {
		t.Fatal("Expected success")
	}
	if r.StatusCode() != http.StatusOK {
		t.Errorf("Expected status 200, got %d", r.StatusCode())
	}
	v, err := r.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != 42 {
		t.Errorf("Expected 42, got %d", v)
	}
	if len(r.Errors()) != 0 {
		t.Errorf("Expected no errors, got %v", r.Errors())
	}
}

func TestSuccessStatus(t *testing.T) {
	r := SuccessStatus("created", http.StatusCreated)
	if r.StatusCode() != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", r.StatusCode())
	}
}

func TestFailure_KeepsErrorsInOrder(t *testing.T) {
	e1 := ValidationError("Name.Required", "name is required")
	e2 := ValidationError("Price.Positive", "price must be positive")

	r := Failure[int](e1, e2)

	if r.IsSuccess() {
		t.Fatal("Expected failure")
	}
	want := []Error{e1, e2}
	if !reflect.DeepEqual(r.Errors(), want) {
		t.Errorf("Expected %v, got %v", want, r.Errors())
	}
	if r.StatusCode() != http.StatusBadRequest {
		t.Errorf("Expected status from validation kind (400), got %d", r.StatusCode())
	}
}

func TestNewFailure_RejectsEmptyList(t *testing.T) {
	_, err := NewFailure[int](nil, http.StatusBadRequest)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState, got %v", err)
	}

	r, err := NewFailure[int]([]Error{}, http.StatusBadRequest)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState for empty slice, got %v", err)
	}
	if r.IsSuccess() {
		t.Fatal("Expected the rejected result to be a failure")
	}
	if r.StatusCode() != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", r.StatusCode())
	}
	if first, _ := r.FirstError(); first.Code != CodeUnhandledException {
		t.Errorf("Expected %s, got %s", CodeUnhandledException, first.Code)
	}
}

func TestNewFailure_NonEmpty(t *testing.T) {
	errs := []Error{NewError("A", "a"), NewError("B", "b")}

	r, err := NewFailure[string](errs, http.StatusConflict)
	if err != nil {
		t.Fatalf("NewFailure failed: %v", err)
	}
	if r.IsSuccess() {
		t.Error("Expected failure")
	}
	if !reflect.DeepEqual(r.Errors(), errs) {
		t.Errorf("Expected %v, got %v", errs, r.Errors())
	}
	if r.StatusCode() != http.StatusConflict {
		t.Errorf("Expected 409, got %d", r.StatusCode())
	}

	// The result must not alias the caller's slice.
	errs[0] = NewError("X", "x")
	if r.Errors()[0].Code != "A" {
		t.Error("Result changed after caller mutated its slice")
	}
}

func TestValue_OnFailureIsChecked(t *testing.T) {
	r := Failure[int](NewError("Boom", "boom"))

	_, err := r.Value()
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}
}

func TestMustValue_PanicsOnFailure(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected MustValue to panic on failure")
		}
	}()
	Failure[int](NewError("Boom", "boom")).MustValue()
}

func TestErrors_ReturnsCopy(t *testing.T) {
	r := Failure[int](NewError("A", "a"))

	errs := r.Errors()
	errs[0] = NewError("B", "b")

	if first, _ := r.FirstError(); first.Code != "A" {
		t.Errorf("Result was mutated through Errors(): %v", first)
	}
}

func TestOrElse(t *testing.T) {
	if got := Success(1).OrElse(7); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := Failure[int](NewError("A", "a")).OrElse(7); got != 7 {
		t.Errorf("Expected 7, got %d", got)
	}
}

func TestMatch(t *testing.T) {
	ok := Match(Success(2), func(v int) string { return "ok" }, func([]Error) string { return "err" })
	if ok != "ok" {
		t.Errorf("Expected ok, got %s", ok)
	}

	failed := Match(Failure[int](NewError("A", "a")),
		func(int) string { return "ok" },
		func(errs []Error) string { return errs[0].Code })
	if failed != "A" {
		t.Errorf("Expected A, got %s", failed)
	}
}

func TestErrorStrings(t *testing.T) {
	e := NewError("Entity.NotFound", "product was not found")
	if e.String() != "Entity.NotFound: product was not found" {
		t.Errorf("Unexpected error string: %s", e.String())
	}

	he := e.WithStatus(http.StatusNotFound)
	want := "HttpErrorCode(404) => Entity.NotFound: product was not found"
	if he.String() != want {
		t.Errorf("Expected %q, got %q", want, he.String())
	}
}

func TestErrorsAreStructurallyEqual(t *testing.T) {
	if NewError("A", "a") != NewError("A", "a") {
		t.Error("Expected errors with same fields to be equal")
	}
	if ValidationError("A", "a") == NewError("A", "a") {
		t.Error("Expected different kinds to compare unequal")
	}
}

func TestWellKnownErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    HTTPError
		code   string
		status int
		kind   Kind
	}{
		{"cancelled", Cancelled(), CodeCancelled, http.StatusRequestTimeout, KindCancelled},
		{"unhandled", UnhandledException("disk full"), CodeUnhandledException, http.StatusInternalServerError, KindInternal},
		{"not found", EntityNotFound("Product"), CodeEntityNotFound, http.StatusNotFound, KindNotFound},
		{"save", SaveFailed(), CodeSaveError, http.StatusConflict, KindConflict},
		{"inconsistent", InconsistentParameters("x"), CodeInconsistentParameters, http.StatusBadRequest, KindValidation},
		{"sort by", SortByInvalid("Color"), CodeSortByInvalid, http.StatusBadRequest, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, tt.err.Error.Code)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, tt.err.StatusCode)
			}
			if tt.err.Error.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, tt.err.Error.Kind)
			}
		})
	}

	if msg := UnhandledException("disk full").Error.Message; msg != "disk full" {
		t.Errorf("Expected fault message verbatim, got %q", msg)
	}
}
