package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/nurole/shorttoken/internal/record"
)

// Entity provides generic CRUD operations for any record type.
// It implements record.Store.
type Entity[T any] struct {
	store   *Store
	name    string
	prefix  string
	id      func(*T) string
	indexes []Index[T]
}

// Index defines a unique secondary index on an entity.
type Index[T any] struct {
	name            string
	keyGen          func(*T) string
	lookupTransform func(string) string // Optional transformation for lookups
}

// NewEntity creates a new Entity for type T. name identifies the type in
// conflict errors, prefix namespaces its keys, and id returns a record's
// primary key.
func NewEntity[T any](s *Store, name, prefix string, id func(*T) string) *Entity[T] {
	return &Entity[T]{
		store:  s,
		name:   name,
		prefix: prefix,
		id:     id,
	}
}

// WithIndex adds a unique secondary index to the entity. Records whose index
// value is empty are not indexed.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

// WithIndexTransform adds a unique secondary index with lookup transformation.
// The lookupTransform function is applied to search values before index lookup,
// enabling case-insensitive searches, normalization, etc.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:            name,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
	})
	return e
}

// WithFields indexes every unique field of a record type.
func (e *Entity[T]) WithFields(fields ...record.Field[T]) *Entity[T] {
	for _, f := range fields {
		if f.Unique {
			e.WithIndex(f.Name, f.Get)
		}
	}
	return e
}

// Name returns the entity's type name.
func (e *Entity[T]) Name() string {
	return e.name
}

// Insert stores a new record.
// Returns ErrAlreadyExists if a record with its ID exists, and a *ConflictError
// naming the index if one of its unique values is taken.
func (e *Entity[T]) Insert(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := e.id(rec)
	if id == "" {
		return ErrInvalidInput.WithMessage(e.name + " id is required")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.name, err)
	}

	return e.store.update(func(txn *badger.Txn) error {
		key := []byte(e.prefix + id)

		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyExists.WithMessage(fmt.Sprintf("%s %s already exists", e.name, id))
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check existing key: %w", err)
		}

		if err := e.checkIndexes(txn, rec, nil); err != nil {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("failed to set key: %w", err)
		}
		return e.setIndexes(txn, id, rec)
	})
}

// Update replaces an existing record.
// Returns ErrNotFound if the record does not exist.
func (e *Entity[T]) Update(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := e.id(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", e.name, err)
	}

	return e.store.update(func(txn *badger.Txn) error {
		key := []byte(e.prefix + id)

		old, err := e.read(txn, key)
		if err != nil {
			return err
		}
		return e.replace(txn, key, id, data, rec, old)
	})
}

// Modify applies fn to the stored record inside one transaction and writes the
// result. A concurrent commit makes the transaction replay, so fn may run more
// than once and must only change the record it is given.
func (e *Entity[T]) Modify(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out *T
	err := e.store.update(func(txn *badger.Txn) error {
		key := []byte(e.prefix + id)

		old, err := e.read(txn, key)
		if err != nil {
			return err
		}

		rec := *old
		if err := fn(&rec); err != nil {
			return err
		}
		if e.id(&rec) != id {
			return ErrInvalidInput.WithMessage(e.name + " id cannot change")
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", e.name, err)
		}
		if err := e.replace(txn, key, id, data, &rec, old); err != nil {
			return err
		}
		out = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// replace overwrites old with rec and moves its index entries.
func (e *Entity[T]) replace(txn *badger.Txn, key []byte, id string, data []byte, rec, old *T) error {
	if err := e.checkIndexes(txn, rec, old); err != nil {
		return err
	}
	if err := e.deleteIndexes(txn, old); err != nil {
		return err
	}

	if err := txn.Set(key, data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return e.setIndexes(txn, id, rec)
}

// Get retrieves a record by ID.
// Returns ErrNotFound if the record does not exist.
func (e *Entity[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := buildKey(e.prefix, id)
	defer releaseKey(key)

	var rec T
	err := e.store.get(key, &rec)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", e.name, err)
	}
	return &rec, nil
}

// Exists reports whether a record with the given ID is stored.
func (e *Entity[T]) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := buildKey(e.prefix, id)
	defer releaseKey(key)
	return e.store.exists(key)
}

// FindOne retrieves a record by unique index.
// If the index has a lookup transform, it will be applied to the value before lookup.
func (e *Entity[T]) FindOne(ctx context.Context, field, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx, ok := e.index(field)
	if !ok {
		return nil, fmt.Errorf("%s has no index on %s", e.name, field)
	}
	if idx.lookupTransform != nil {
		value = idx.lookupTransform(value)
	}

	indexKey := buildIndexKey(e.prefix, field, value)
	defer releaseKey(indexKey)

	var id string
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return e.Get(ctx, id)
}

// Delete deletes a record by ID.
// This operation is idempotent - it does not return an error if the record does not exist.
func (e *Entity[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.store.update(func(txn *badger.Txn) error {
		key := []byte(e.prefix + id)

		old, err := e.read(txn, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := e.deleteIndexes(txn, old); err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
		return nil
	})
}

// List returns an iterator over all records.
func (e *Entity[T]) List(ctx context.Context) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		_ = e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(e.prefix)
			opts.PrefetchValues = true

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
				if ctx.Err() != nil {
					yield(nil, ctx.Err())
					return ctx.Err()
				}

				// Skip index keys
				key := string(it.Item().Key())
				if strings.HasPrefix(key[len(e.prefix):], "idx:") {
					continue
				}

				var rec T
				err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &rec)
				})
				if err != nil {
					yield(nil, err)
					return err
				}

				if !yield(&rec, nil) {
					return nil // Consumer stopped early
				}
			}
			return nil
		})
	}
}

func (e *Entity[T]) index(name string) (Index[T], bool) {
	for _, idx := range e.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return Index[T]{}, false
}

func (e *Entity[T]) read(txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get existing key: %w", err)
	}

	var rec T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", e.name, err)
	}
	return &rec, nil
}

// checkIndexes fails with a *ConflictError if any unique value of rec is held
// by another record. Values unchanged from old are the record's own.
func (e *Entity[T]) checkIndexes(txn *badger.Txn, rec, old *T) error {
	for _, idx := range e.indexes {
		value := idx.keyGen(rec)
		if value == "" {
			continue
		}
		if old != nil && idx.keyGen(old) == value {
			continue
		}

		idxKey := buildIndexKey(e.prefix, idx.name, value)
		_, err := txn.Get(idxKey)
		releaseKey(idxKey)

		if err == nil {
			return &ConflictError{Entity: e.name, Field: idx.name, Value: value}
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check index key: %w", err)
		}
	}
	return nil
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, id string, rec *T) error {
	for _, idx := range e.indexes {
		value := idx.keyGen(rec)
		if value == "" {
			continue
		}
		// Badger holds written keys until commit, so they never come from the pool.
		idxKey := []byte(e.prefix + "idx:" + idx.name + ":" + value)
		if err := txn.Set(idxKey, []byte(id)); err != nil {
			return fmt.Errorf("failed to set index key: %w", err)
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, rec *T) error {
	for _, idx := range e.indexes {
		value := idx.keyGen(rec)
		if value == "" {
			continue
		}
		idxKey := []byte(e.prefix + "idx:" + idx.name + ":" + value)
		if err := txn.Delete(idxKey); err != nil {
			return fmt.Errorf("failed to delete index key: %w", err)
		}
	}
	return nil
}
