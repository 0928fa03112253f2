package validation_test

import (
	"net/http"
	"testing"

	domainerrors "github.com/nurole/shorttoken/internal/errors"
	"github.com/nurole/shorttoken/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	URL   string `json:"url" validate:"required,http_url"`
	Title string `json:"title,omitempty" validate:"max=10"`
	Hits  int    `json:"hits" validate:"gte=0"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	err := v.Validate(testRequest{URL: "https://example.com/a", Title: "short"})
	assert.NoError(t, err)
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		req       testRequest
		wantField string
		wantMsg   string
	}{
		{"missing url", testRequest{}, "url", "is required"},
		{"bad url", testRequest{URL: "not a url"}, "url", "must be a valid URL"},
		{"title too long", testRequest{URL: "https://example.com", Title: "far too long"}, "title", "must not exceed 10 characters"},
		{"negative hits", testRequest{URL: "https://example.com", Hits: -1}, "hits", "must be greater than or equal to 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("email", "a@example.com", "required,email"))

	err := v.Var("email", "nope", "required,email")
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]string{"email": "must be a valid email address"}, domainErr.Details)
}
