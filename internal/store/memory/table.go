// Package memory provides in-process record stores backed by concurrent skip
// lists. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/zhangyunhao116/skipmap"

	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/store"
)

type index struct {
	name   string
	owners *skipmap.FuncMap[string, string] // value -> record id
}

// Table stores records of one type. It implements record.Store.
//
// Unique values are claimed with an atomic load-or-store on the index before
// the record itself is written, so two concurrent writers can never both hold
// the same value.
type Table[T any] struct {
	name    string
	id      func(*T) string
	get     map[string]func(*T) string
	indexes []index
	records *skipmap.FuncMap[string, *T]
	// inserting marks ids with an insert in flight.
	inserting *skipmap.FuncMap[string, struct{}]

	// mu serializes updates and deletes, which release old index values.
	mu sync.Mutex
}

func newMap[V any]() *skipmap.FuncMap[string, V] {
	return skipmap.NewFunc[string, V](func(a, b string) bool {
		return a < b
	})
}

// NewTable creates an empty table. Every unique field gets an index.
func NewTable[T any](name string, id func(*T) string, fields ...record.Field[T]) *Table[T] {
	t := &Table[T]{
		name:      name,
		id:        id,
		get:       make(map[string]func(*T) string),
		records:   newMap[*T](),
		inserting: newMap[struct{}](),
	}
	for _, f := range fields {
		if !f.Unique {
			continue
		}
		t.get[f.Name] = f.Get
		t.indexes = append(t.indexes, index{name: f.Name, owners: newMap[string]()})
	}
	return t
}

// Insert stores a copy of rec.
func (t *Table[T]) Insert(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := t.id(rec)
	if id == "" {
		return store.ErrInvalidInput.WithMessage(t.name + " id is required")
	}
	exists := store.ErrAlreadyExists.WithMessage(fmt.Sprintf("%s %s already exists", t.name, id))
	if _, busy := t.inserting.LoadOrStore(id, struct{}{}); busy {
		return exists
	}
	defer t.inserting.Delete(id)

	if _, ok := t.records.Load(id); ok {
		return exists
	}

	claimed, err := t.claim(id, rec, nil)
	if err != nil {
		return err
	}

	cp := *rec
	if _, loaded := t.records.LoadOrStore(id, &cp); loaded {
		t.release(id, claimed)
		return exists
	}
	return nil
}

// Update replaces the stored copy of rec.
func (t *Table[T]) Update(ctx context.Context, rec *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.id(rec)
	old, ok := t.records.Load(id)
	if !ok {
		return store.ErrNotFound
	}

	cp := *rec
	return t.replace(id, &cp, old)
}

// Modify applies fn to a copy of the stored record and stores the result.
// Updates and other modifications wait for it.
func (t *Table[T]) Modify(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.records.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}

	rec := *old
	if err := fn(&rec); err != nil {
		return nil, err
	}
	if t.id(&rec) != id {
		return nil, store.ErrInvalidInput.WithMessage(t.name + " id cannot change")
	}
	if err := t.replace(id, &rec, old); err != nil {
		return nil, err
	}

	out := rec
	return &out, nil
}

// replace stores rec, which the table now owns, in place of old. t.mu must be held.
func (t *Table[T]) replace(id string, rec, old *T) error {
	if _, err := t.claim(id, rec, old); err != nil {
		return err
	}

	t.records.Store(id, rec)

	// Free the values the record no longer holds.
	var freed []claim
	for _, idx := range t.indexes {
		before := t.get[idx.name](old)
		if before != "" && before != t.get[idx.name](rec) {
			freed = append(freed, claim{idx: idx, value: before})
		}
	}
	t.release(id, freed)
	return nil
}

// FindOne returns a copy of the record whose unique field equals value.
func (t *Table[T]) FindOne(ctx context.Context, field, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var id string
	switch field {
	case "id":
		id = value
	default:
		idx, ok := t.index(field)
		if !ok {
			return nil, fmt.Errorf("%s has no index on %s", t.name, field)
		}
		owner, ok := idx.owners.Load(value)
		if !ok {
			return nil, store.ErrNotFound
		}
		id = owner
	}

	rec, ok := t.records.Load(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Delete removes a record and frees its unique values. Deleting a missing
// record is not an error.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	old, ok := t.records.LoadAndDelete(id)
	if !ok {
		return nil
	}

	var freed []claim
	for _, idx := range t.indexes {
		if v := t.get[idx.name](old); v != "" {
			freed = append(freed, claim{idx: idx, value: v})
		}
	}
	t.release(id, freed)
	return nil
}

// Len returns the number of stored records.
func (t *Table[T]) Len() int {
	return t.records.Len()
}

type claim struct {
	idx   index
	value string
}

// claim reserves every unique value of rec for id. Values rec shares with old
// already belong to id. On conflict, values reserved so far are released.
//
// For an insert (old == nil) a value already owned by id means another insert
// of the same id is in flight. It owns that entry and may still release it,
// so this insert fails instead of relying on it.
func (t *Table[T]) claim(id string, rec, old *T) ([]claim, error) {
	var claimed []claim
	for _, idx := range t.indexes {
		get := t.get[idx.name]
		value := get(rec)
		if value == "" {
			continue
		}
		if old != nil && get(old) == value {
			continue
		}

		owner, loaded := idx.owners.LoadOrStore(value, id)
		switch {
		case !loaded:
			claimed = append(claimed, claim{idx: idx, value: value})
		case owner != id:
			t.release(id, claimed)
			return nil, &store.ConflictError{Entity: t.name, Field: idx.name, Value: value}
		case old == nil:
			t.release(id, claimed)
			return nil, store.ErrAlreadyExists.WithMessage(fmt.Sprintf("%s %s already exists", t.name, id))
		}
	}
	return claimed, nil
}

// release drops index entries that are still owned by id.
func (t *Table[T]) release(id string, claims []claim) {
	for _, c := range claims {
		if owner, ok := c.idx.owners.Load(c.value); ok && owner == id {
			c.idx.owners.Delete(c.value)
		}
	}
}

func (t *Table[T]) index(name string) (index, bool) {
	for _, idx := range t.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return index{}, false
}
