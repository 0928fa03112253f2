package record

import (
	"context"
	"fmt"
)

// Repository binds a record type to a store. Hooks run once per call; the
// middleware chain is built when the repository is created, so a type must be
// fully configured before NewRepository is called.
type Repository[T any] struct {
	typ    *Type[T]
	store  Store[T]
	insert WriteFunc[T]
	update WriteFunc[T]
}

// NewRepository creates a repository for typ backed by s.
func NewRepository[T any](typ *Type[T], s Store[T]) *Repository[T] {
	return &Repository[T]{
		typ:    typ,
		store:  s,
		insert: typ.wrap(s.Insert),
		update: typ.wrap(s.Update),
	}
}

// Type returns the record type.
func (r *Repository[T]) Type() *Type[T] {
	return r.typ
}

// Save inserts rec when the type reports it as new and updates it otherwise.
// Newness is decided once, before any hook runs, so a create hook may stamp
// the fields the check looks at.
func (r *Repository[T]) Save(ctx context.Context, rec *T) error {
	if r.typ.isNew == nil {
		return fmt.Errorf("%s: Save needs a type with an IsNew check", r.typ.name)
	}
	if r.typ.isNew(rec) {
		return r.Create(ctx, rec)
	}
	return r.Update(ctx, rec)
}

// Create runs the save and create hooks, then inserts rec.
func (r *Repository[T]) Create(ctx context.Context, rec *T) error {
	if err := r.run(ctx, rec, true); err != nil {
		return err
	}
	return r.insert(ctx, rec)
}

// Update runs the save hooks, then updates rec.
func (r *Repository[T]) Update(ctx context.Context, rec *T) error {
	if err := r.run(ctx, rec, false); err != nil {
		return err
	}
	return r.update(ctx, rec)
}

// FindOne returns the record whose field equals value.
func (r *Repository[T]) FindOne(ctx context.Context, field, value string) (*T, error) {
	return r.store.FindOne(ctx, field, value)
}

func (r *Repository[T]) run(ctx context.Context, rec *T, create bool) error {
	for _, h := range r.typ.hooks(create) {
		if err := h(ctx, rec); err != nil {
			return fmt.Errorf("%s hook: %w", r.typ.name, err)
		}
	}
	return nil
}
