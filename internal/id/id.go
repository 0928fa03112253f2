// Package id generates record identifiers. Identifiers are opaque strings;
// callers must not parse them.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewFunc produces the random part of an identifier. Tests may stub it.
var NewFunc = func() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Generate creates a prefixed unique ID.
// Format: prefix-uuid (e.g., "link-1b4e28ba-2fa1-11d2-883f-0016d3cca427")
//
// Record IDs are internal primary keys. The short public handle of a record is
// its token, which is generated separately.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := NewFunc()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
