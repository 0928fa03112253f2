package guard

import (
	"errors"
	"fmt"
)

// ErrCollisionRetriesExceeded matches any *CollisionRetriesExceededError under errors.Is.
var ErrCollisionRetriesExceeded = errors.New("collision retries exceeded")

// CollisionRetriesExceededError is returned when every attempt of a save hit a
// unique conflict on the token field. The record keeps the last rejected token.
//
// It deliberately does not unwrap to the last conflict, so an outer writer never
// mistakes an exhausted save for a retryable one.
type CollisionRetriesExceededError struct {
	Record    any    // the record that could not be saved
	Type      string // record type name
	Field     string // token field
	Retries   int    // configured retry bound
	LastToken string // last value rejected by the store
	Last      error  // last conflict reported by the store
}

func (e *CollisionRetriesExceededError) Error() string {
	return fmt.Sprintf("%s: %s collision retries exceeded (%d)", e.Type, e.Field, e.Retries)
}

// Is reports whether target is ErrCollisionRetriesExceeded.
func (e *CollisionRetriesExceededError) Is(target error) bool {
	return target == ErrCollisionRetriesExceeded
}
