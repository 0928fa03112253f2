package token

import (
	"fmt"

	"github.com/nurole/shorttoken/internal/validation"
)

// Policy defaults.
const (
	DefaultField      = "token"
	DefaultLength     = 4
	DefaultCharset    = Alphanumeric
	DefaultMaxRetries = 3
)

var validate = validation.New()

// Policy is the token configuration of one record type. It is fixed when the
// type is declared and shared by every record of that type.
type Policy struct {
	// Field is the name of the uniquely indexed field that holds the token.
	Field string `json:"field" validate:"required,max=64"`
	// Length is the number of symbols to generate.
	Length int `json:"length" validate:"gte=1,lte=64"`
	// Charset selects the alphabet and padding rules.
	Charset Charset `json:"charset" validate:"oneof=alphanumeric numeric fixed_numeric alpha"`
	// MaxRetries bounds the write attempts of one save. Zero disables the guard.
	MaxRetries int `json:"max_retries" validate:"gte=0,lte=100"`
}

// Option customizes a Policy built by NewPolicy.
type Option func(*Policy)

// WithField sets the token field name.
func WithField(name string) Option {
	return func(p *Policy) { p.Field = name }
}

// WithLength sets the token length.
func WithLength(n int) Option {
	return func(p *Policy) { p.Length = n }
}

// WithCharset sets the token charset.
func WithCharset(c Charset) Option {
	return func(p *Policy) { p.Charset = c }
}

// WithMaxRetries sets the per-save retry bound.
func WithMaxRetries(n int) Option {
	return func(p *Policy) { p.MaxRetries = n }
}

// NewPolicy returns a validated policy built from the defaults and opts.
func NewPolicy(opts ...Option) (Policy, error) {
	p := Policy{
		Field:      DefaultField,
		Length:     DefaultLength,
		Charset:    DefaultCharset,
		MaxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// MustPolicy is like NewPolicy but panics on an invalid policy.
// Use it for policies declared in code at package init.
func MustPolicy(opts ...Option) Policy {
	p, err := NewPolicy(opts...)
	if err != nil {
		panic(fmt.Sprintf("invalid token policy: %v", err))
	}
	return p
}

// Validate checks the policy fields.
func (p Policy) Validate() error {
	return validate.Validate(p)
}

// Generate produces a token under this policy with gen.
func (p Policy) Generate(gen Generator) (string, error) {
	if gen == nil {
		gen = Generate
	}
	return gen(p.Length, p.Charset)
}

// Space returns the number of distinct tokens the policy can produce, capped at
// the largest int64. Callers use it to warn about policies that are too small.
func (p Policy) Space() int64 {
	alphabet, err := Alphabet(p.Charset)
	if err != nil {
		return 0
	}
	base := int64(len(alphabet))

	var total int64 = 1
	for range p.Length {
		if total > (1<<63-1)/base {
			return 1<<63 - 1
		}
		total *= base
	}
	return total
}
