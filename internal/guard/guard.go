// Package guard assigns tokens to records and keeps them unique.
//
// Uniqueness is never checked ahead of time. The guard always attempts the write
// and reacts to the store's conflict signal on the token field: it regenerates the
// token and writes again, up to the policy's retry bound. The budget belongs to a
// single call, so every save starts with the full bound.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/store"
	"github.com/nurole/shorttoken/internal/token"
)

type options struct {
	logger    *slog.Logger
	generator token.Generator
}

// Option configures Wrap and Install.
type Option func(*options)

// WithLogger logs conflicts at debug level and exhaustion at warn level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGenerator replaces token.Generate.
func WithGenerator(g token.Generator) Option {
	return func(o *options) { o.generator = g }
}

func buildOptions(opts []Option) options {
	o := options{generator: token.Generate}
	for _, opt := range opts {
		opt(&o)
	}
	if o.generator == nil {
		o.generator = token.Generate
	}
	return o
}

// Wrap returns write guarded by the token retry protocol.
//
// An empty token field is filled before the first attempt. A conflict on
// policy.Field consumes one unit of the policy.MaxRetries budget; while budget
// remains, the token is regenerated and the write repeated. When it runs out the
// call fails with *CollisionRetriesExceededError and the store is not called
// again. Every other error, conflicts on other fields included, is returned
// unchanged. A zero MaxRetries returns conflicts unchanged as well.
func Wrap[T any](typeName string, policy token.Policy, field record.Field[T], write record.WriteFunc[T], opts ...Option) record.WriteFunc[T] {
	o := buildOptions(opts)

	return func(ctx context.Context, rec *T) error {
		if field.Get(rec) == "" {
			if err := assign(policy, field, o.generator, rec); err != nil {
				return err
			}
		}

		remaining := policy.MaxRetries
		for {
			err := write(ctx, rec)
			if err == nil {
				return nil
			}
			if policy.MaxRetries == 0 || !store.IsConflictOn(err, policy.Field) {
				return err
			}

			rejected := field.Get(rec)
			remaining--
			if remaining <= 0 {
				if o.logger != nil {
					o.logger.Warn("Token collision retries exceeded",
						"type", typeName,
						"field", policy.Field,
						"retries", policy.MaxRetries,
						"token_space", policy.Space(),
					)
				}
				return &CollisionRetriesExceededError{
					Record:    rec,
					Type:      typeName,
					Field:     policy.Field,
					Retries:   policy.MaxRetries,
					LastToken: rejected,
					Last:      err,
				}
			}

			if o.logger != nil {
				o.logger.Debug("Token collision, regenerating",
					"type", typeName,
					"field", policy.Field,
					"token", rejected,
					"remaining", remaining,
				)
			}
			if err := assign(policy, field, o.generator, rec); err != nil {
				return err
			}
		}
	}
}

// Install declares field as a unique token field on typ, registers the
// generation hooks, and guards the type's writes with Wrap.
//
// Both hooks only fill an empty field: the create hook gives new records their
// token, the save hook backfills records stored before the field existed. A
// token the caller sets before the first save is kept, not replaced by a
// generated one; it is only regenerated if it collides.
func Install[T any](typ *record.Type[T], field record.Field[T], policy token.Policy, opts ...Option) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%s token policy: %w", typ.Name(), err)
	}
	if field.Name != policy.Field {
		return fmt.Errorf("%s: field %q does not match policy field %q", typ.Name(), field.Name, policy.Field)
	}

	field.Unique = true
	if err := typ.DeclareField(field); err != nil {
		return err
	}

	o := buildOptions(opts)
	fill := func(_ context.Context, rec *T) error {
		if field.Get(rec) != "" {
			return nil
		}
		return assign(policy, field, o.generator, rec)
	}
	typ.OnBeforeCreate(fill)
	typ.OnBeforeSave(fill)

	typ.Use(func(next record.WriteFunc[T]) record.WriteFunc[T] {
		return Wrap(typ.Name(), policy, field, next, opts...)
	})
	return nil
}

// Finder looks records up by a unique field.
type Finder[T any] interface {
	FindOne(ctx context.Context, field, value string) (*T, error)
}

// FindByToken returns the record holding value in the policy's token field, or
// nil when no record does.
func FindByToken[T any](ctx context.Context, f Finder[T], policy token.Policy, value string) (*T, error) {
	if value == "" {
		return nil, nil
	}

	rec, err := f.FindOne(ctx, policy.Field, value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func assign[T any](policy token.Policy, field record.Field[T], gen token.Generator, rec *T) error {
	value, err := policy.Generate(gen)
	if err != nil {
		return fmt.Errorf("generate %s: %w", policy.Field, err)
	}
	field.Set(rec, value)
	return nil
}
