package sqlite

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/nurole/shorttoken/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify tables exist.
	for _, table := range []string{"links", "invites"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	s2.Close()
}

func TestUniqueViolation(t *testing.T) {
	values := map[string]string{"token": "Ab3F"}

	tests := []struct {
		name      string
		err       error
		wantField string
		wantIs    error
	}{
		{
			name:      "column",
			err:       errors.New("constraint failed: UNIQUE constraint failed: links.token (2067)"),
			wantField: "token",
			wantIs:    store.ErrAlreadyExists,
		},
		{
			name:   "primary key",
			err:    errors.New("constraint failed: UNIQUE constraint failed: links.id (1555)"),
			wantIs: store.ErrAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uniqueViolation(tt.err, "link", "links", "link-1", values)
			if !errors.Is(got, tt.wantIs) {
				t.Fatalf("expected %v, got %v", tt.wantIs, got)
			}
			if tt.wantField == "" {
				var conflict *store.ConflictError
				if errors.As(got, &conflict) {
					t.Errorf("primary key violation reported as field conflict: %v", got)
				}
				return
			}
			if !store.IsConflictOn(got, tt.wantField) {
				t.Errorf("expected conflict on %s, got %v", tt.wantField, got)
			}
		})
	}

	other := errors.New("disk I/O error")
	if got := uniqueViolation(other, "link", "links", "link-1", values); got != other {
		t.Errorf("expected unrelated error unchanged, got %v", got)
	}
	if got := uniqueViolation(nil, "link", "links", "link-1", values); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
