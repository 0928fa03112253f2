package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/nurole/shorttoken/internal/errors"
	"github.com/nurole/shorttoken/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	JSON(w, http.StatusOK, map[string]string{"message": "test"}, logger)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	result := decode(t, w)
	assert.True(t, result.Success)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Error)
}

func TestJSON_NilLogger(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreated(t *testing.T) {
	w := httptest.NewRecorder()
	Created(w, map[string]string{"id": "1"}, nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string, *slog.Logger)
		status int
	}{
		{"bad request", BadRequest, http.StatusBadRequest},
		{"not found", NotFound, http.StatusNotFound},
		{"conflict", Conflict, http.StatusConflict},
		{"too many requests", TooManyRequests, http.StatusTooManyRequests},
		{"internal", InternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, "boom", nil)

			assert.Equal(t, tt.status, w.Code)
			result := decode(t, w)
			assert.False(t, result.Success)
			assert.Equal(t, "boom", result.Error)
			assert.Nil(t, result.Data)
		})
	}
}

func TestStatusCodeBoundary(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, 399, nil, nil)
	assert.True(t, decode(t, w).Success)

	w = httptest.NewRecorder()
	JSON(w, 400, nil, nil)
	assert.False(t, decode(t, w).Success)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		message  string
		hasExtra bool
	}{
		{
			name:    "domain not found",
			err:     domainerrors.NotFound("link not found"),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "link not found",
		},
		{
			name:    "wrapped token exhausted",
			err:     fmt.Errorf("create: %w", domainerrors.TokenExhausted(errors.New("retries"))),
			status:  http.StatusServiceUnavailable,
			code:    "TOKEN_EXHAUSTED",
			message: "could not allocate a unique token, try again later",
		},
		{
			name:     "validation details",
			err:      domainerrors.ValidationWithDetails("validation failed", map[string]string{"target_url": "is required"}),
			status:   http.StatusBadRequest,
			code:     "VALIDATION",
			message:  "validation failed",
			hasExtra: true,
		},
		{
			name:    "store error",
			err:     store.ErrNotFound.WithMessage("invite not found"),
			status:  http.StatusNotFound,
			message: "invite not found",
		},
		{
			name:    "unknown",
			err:     errors.New("disk on fire"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleError(w, tt.err, slog.New(slog.NewTextHandler(io.Discard, nil)))

			assert.Equal(t, tt.status, w.Code)
			result := decode(t, w)
			assert.False(t, result.Success)
			assert.Equal(t, tt.code, result.Code)
			assert.Equal(t, tt.message, result.Error)
			if tt.hasExtra {
				assert.NotNil(t, result.Details)
			}
		})
	}
}
