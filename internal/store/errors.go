package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a store error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors with the same status code, so errors derived through
// WithMessage still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a new error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}
)

// ConflictError reports a unique constraint violation on a single field.
// Every backend returns it, so callers can tell which constraint failed
// without parsing driver messages.
type ConflictError struct {
	Entity string // record type, e.g. "link"
	Field  string // violated unique field, e.g. "token"
	Value  string // offending value, when the backend knows it
}

func (e *ConflictError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: unique %s %q already taken", e.Entity, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: unique %s already taken", e.Entity, e.Field)
}

// Unwrap lets errors.Is(err, ErrAlreadyExists) match conflicts.
func (e *ConflictError) Unwrap() error { return ErrAlreadyExists }

// IsConflictOn reports whether err is a unique violation on field.
func IsConflictOn(err error, field string) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) && conflict.Field == field
}
