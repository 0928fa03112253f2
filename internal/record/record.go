// Package record defines record types, their lifecycle hooks, and the store
// contract that persistence backends implement.
//
// A Type is configured once, at definition time, and shared by every record of
// that type. Capabilities such as token assignment attach to a Type by registering
// hooks and write middleware instead of by embedding behavior in the record.
package record

import (
	"context"
	"fmt"
	"sync"
)

// WriteFunc persists a single record.
type WriteFunc[T any] func(ctx context.Context, rec *T) error

// Hook runs before a write. Returning an error aborts the write.
type Hook[T any] func(ctx context.Context, rec *T) error

// Middleware wraps a write operation, e.g. to retry it.
type Middleware[T any] func(next WriteFunc[T]) WriteFunc[T]

// Store is the persistence contract a backend provides for one record type.
// Insert and Update must enforce unique fields atomically with the write and
// report violations as *store.ConflictError.
type Store[T any] interface {
	Insert(ctx context.Context, rec *T) error
	Update(ctx context.Context, rec *T) error
	// FindOne returns the record whose field equals value, or store.ErrNotFound.
	FindOne(ctx context.Context, field, value string) (*T, error)
}

// Modifier is implemented by stores that can change one stored record in a
// single atomic read-modify-write. fn sees the current stored copy; returning
// an error aborts the change. Unique fields are checked as on Update.
type Modifier[T any] interface {
	Modify(ctx context.Context, id string, fn func(*T) error) (*T, error)
}

// Field declares a named string field on a record type.
type Field[T any] struct {
	Name   string
	Get    func(*T) string
	Set    func(*T, string)
	Unique bool
}

// Type describes a record type: its declared fields, hooks, and write middleware.
type Type[T any] struct {
	name  string
	isNew func(*T) bool

	mu           sync.RWMutex
	fields       []Field[T]
	beforeCreate []Hook[T]
	beforeSave   []Hook[T]
	middleware   []Middleware[T]
}

// NewType creates a record type. name identifies it in errors and logs.
// isNew tells Repository.Save whether a record still has to be inserted; a
// type created with a nil isNew only supports explicit Create and Update.
func NewType[T any](name string, isNew func(*T) bool) *Type[T] {
	return &Type[T]{name: name, isNew: isNew}
}

// Name returns the type name.
func (t *Type[T]) Name() string {
	return t.name
}

// IsNew reports whether rec has not been stored yet.
func (t *Type[T]) IsNew(rec *T) bool {
	return t.isNew != nil && t.isNew(rec)
}

// DeclareField adds a string field. Declaring the same name twice is an error.
func (t *Type[T]) DeclareField(f Field[T]) error {
	if f.Name == "" || f.Get == nil || f.Set == nil {
		return fmt.Errorf("%s: field needs a name, getter, and setter", t.name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.fields {
		if existing.Name == f.Name {
			return fmt.Errorf("%s: field %q already declared", t.name, f.Name)
		}
	}
	t.fields = append(t.fields, f)
	return nil
}

// Field returns the declared field with the given name.
func (t *Type[T]) Field(name string) (Field[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field[T]{}, false
}

// UniqueFields returns the fields declared unique. Backends use them to build
// their unique indexes.
func (t *Type[T]) UniqueFields() []Field[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var unique []Field[T]
	for _, f := range t.fields {
		if f.Unique {
			unique = append(unique, f)
		}
	}
	return unique
}

// OnBeforeCreate registers a hook that runs once, before a record's first insert.
func (t *Type[T]) OnBeforeCreate(h Hook[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beforeCreate = append(t.beforeCreate, h)
}

// OnBeforeSave registers a hook that runs before every insert and update.
func (t *Type[T]) OnBeforeSave(h Hook[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.beforeSave = append(t.beforeSave, h)
}

// Use registers write middleware. The first registered middleware is outermost.
func (t *Type[T]) Use(mw Middleware[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.middleware = append(t.middleware, mw)
}

// wrap applies the registered middleware to write.
func (t *Type[T]) wrap(write WriteFunc[T]) WriteFunc[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := len(t.middleware) - 1; i >= 0; i-- {
		write = t.middleware[i](write)
	}
	return write
}

func (t *Type[T]) hooks(create bool) []Hook[T] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	hooks := make([]Hook[T], 0, len(t.beforeSave)+len(t.beforeCreate))
	hooks = append(hooks, t.beforeSave...)
	if create {
		hooks = append(hooks, t.beforeCreate...)
	}
	return hooks
}
