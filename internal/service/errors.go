package service

import (
	"errors"
	"fmt"

	domainerrors "github.com/nurole/shorttoken/internal/errors"
	"github.com/nurole/shorttoken/internal/guard"
	"github.com/nurole/shorttoken/internal/store"
	"github.com/nurole/shorttoken/internal/validation"
)

// validate is a shared validator instance for request validation.
var validate = validation.New()

// writeError converts a repository write failure into a domain error.
func writeError(err error, entity string) error {
	if err == nil {
		return nil
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}

	var exhausted *guard.CollisionRetriesExceededError
	if errors.As(err, &exhausted) {
		return domainerrors.TokenExhausted(err)
	}

	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		return domainerrors.AlreadyExists(fmt.Sprintf("%s with this %s already exists", entity, conflict.Field)).
			WithCause(err)
	}

	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("%s not found", entity)
	}

	return fmt.Errorf("save %s: %w", entity, err)
}
