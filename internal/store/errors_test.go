package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/nurole/shorttoken/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &store.Error{
		Code:    http.StatusNotFound,
		Message: "not found",
		Err:     cause,
	}

	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "underlying error")
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, http.StatusNotFound, err.HTTPCode())
}

func TestError_WithMessage(t *testing.T) {
	modified := store.ErrNotFound.WithMessage("link not found")

	assert.Equal(t, "link not found", modified.Message)
	assert.Equal(t, http.StatusNotFound, modified.Code)
	assert.Equal(t, "resource not found", store.ErrNotFound.Message)
	assert.ErrorIs(t, modified, store.ErrNotFound)
	assert.NotErrorIs(t, modified, store.ErrAlreadyExists)
}

func TestConflictError(t *testing.T) {
	err := &store.ConflictError{Entity: "link", Field: "token", Value: "Ab3F"}

	assert.Equal(t, `link: unique token "Ab3F" already taken`, err.Error())
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestIsConflictOn(t *testing.T) {
	conflict := &store.ConflictError{Entity: "invite", Field: "code"}
	wrapped := fmt.Errorf("insert invite: %w", conflict)

	tests := []struct {
		name  string
		err   error
		field string
		want  bool
	}{
		{"direct match", conflict, "code", true},
		{"wrapped match", wrapped, "code", true},
		{"other field", conflict, "email", false},
		{"plain already exists", store.ErrAlreadyExists, "code", false},
		{"nil", nil, "code", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.IsConflictOn(tt.err, tt.field))
		})
	}
}
