// Package token generates short, human-shareable record tokens.
//
// Tokens are not meant to be unguessable: uniqueness is enforced by the store's
// unique index, not by entropy. The generator only has to produce candidates that
// follow a charset policy and can be called from any goroutine.
package token

import (
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Charset selects the symbols and length rules of a generated token.
type Charset string

// Supported charsets.
const (
	Alphanumeric Charset = "alphanumeric"
	Numeric      Charset = "numeric"
	FixedNumeric Charset = "fixed_numeric"
	Alpha        Charset = "alpha"
)

// Alphabets, in ordinal order: digits, then uppercase, then lowercase.
const (
	digits       = "0123456789"
	upper        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower        = "abcdefghijklmnopqrstuvwxyz"
	alphanumeric = digits + upper + lower
	letters      = upper + lower
)

var (
	// ErrInvalidLength is returned when a token length below 1 is requested.
	ErrInvalidLength = errors.New("token length must be at least 1")
	// ErrUnknownCharset is returned for charsets this package does not implement.
	ErrUnknownCharset = errors.New("unknown token charset")
)

// Generator produces a candidate token. Generate satisfies it; tests substitute
// deterministic sequences.
type Generator func(length int, charset Charset) (string, error)

// ParseCharset converts a config string into a Charset.
// The empty string maps to Alphanumeric.
func ParseCharset(s string) (Charset, error) {
	switch c := Charset(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return Alphanumeric, nil
	case Alphanumeric, Numeric, FixedNumeric, Alpha:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCharset, s)
	}
}

// Alphabet returns the symbols a token of the given charset may contain.
func Alphabet(charset Charset) (string, error) {
	switch charset {
	case Alphanumeric:
		return alphanumeric, nil
	case Numeric, FixedNumeric:
		return digits, nil
	case Alpha:
		return letters, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
	}
}

// Generate returns a random token of the given length and charset.
//
// Numeric tokens are a uniform integer below 10^length printed without padding,
// so they may be shorter than length. FixedNumeric pads that integer to exactly
// length with a single random digit chosen once per call.
func Generate(length int, charset Charset) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}

	switch charset {
	case Alphanumeric:
		return gonanoid.Generate(alphanumeric, length)
	case Alpha:
		return gonanoid.Generate(letters, length)
	case Numeric:
		return randomInt(length)
	case FixedNumeric:
		n, err := randomInt(length)
		if err != nil {
			return "", err
		}
		if len(n) == length {
			return n, nil
		}
		pad, err := gonanoid.Generate(digits, 1)
		if err != nil {
			return "", fmt.Errorf("generate pad digit: %w", err)
		}
		return strings.Repeat(pad, length-len(n)) + n, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
	}
}

// randomInt draws length uniform decimal digits, which is a uniform integer in
// [0, 10^length), and renders it without leading zeros.
func randomInt(length int) (string, error) {
	s, err := gonanoid.Generate(digits, length)
	if err != nil {
		return "", fmt.Errorf("generate digits: %w", err)
	}
	if s = strings.TrimLeft(s, "0"); s == "" {
		return "0", nil
	}
	return s, nil
}

// Valid reports whether value could have been produced under the policy.
// It is a format check only and says nothing about whether the token exists.
func Valid(value string, p Policy) bool {
	alphabet, err := Alphabet(p.Charset)
	if err != nil || value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if strings.IndexByte(alphabet, value[i]) < 0 {
			return false
		}
	}

	if p.Charset == Numeric {
		if len(value) > p.Length {
			return false
		}
		return value == "0" || value[0] != '0'
	}
	return len(value) == p.Length
}
