package service

import (
	"context"

	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/record"
)

// newRecordType declares a record type whose newness and timestamps come from
// its embedded domain.Meta. New records are stamped on create; stored records
// are touched on every later save.
func newRecordType[T any](name string, meta func(*T) *domain.Meta) *record.Type[T] {
	typ := record.NewType(name, func(rec *T) bool {
		return meta(rec).IsNew()
	})
	typ.OnBeforeSave(func(_ context.Context, rec *T) error {
		if m := meta(rec); !m.IsNew() {
			m.Touch()
		}
		return nil
	})
	typ.OnBeforeCreate(func(_ context.Context, rec *T) error {
		meta(rec).InitTimestamps()
		return nil
	})
	return typ
}

// modifierOf returns s as a record.Modifier, or nil if the backend has no
// atomic read-modify-write.
func modifierOf[T any](s record.Store[T]) record.Modifier[T] {
	m, _ := s.(record.Modifier[T])
	return m
}
