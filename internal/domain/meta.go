// Package domain holds the record types served by shorttoken.
package domain

import "time"

// Meta is embedded by every stored record. ID is the internal primary key;
// the public handle of a record is its token.
type Meta struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// InitTimestamps stamps a record that is about to be created.
func (m *Meta) InitTimestamps() {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
}

// IsNew reports whether the record has never been stored. Stores always
// persist CreatedAt, so a zero value means no insert has happened yet.
func (m *Meta) IsNew() bool {
	return m.CreatedAt.IsZero()
}

// Touch marks the record as modified now.
func (m *Meta) Touch() {
	m.UpdatedAt = time.Now()
}

// IsDeleted reports whether the record has been soft-deleted. Deleted records
// keep their token so it is never handed out twice.
func (m *Meta) IsDeleted() bool {
	return m.DeletedAt != nil
}

// MarkDeleted soft-deletes the record.
func (m *Meta) MarkDeleted() {
	now := time.Now()
	m.DeletedAt = &now
	m.UpdatedAt = now
}
