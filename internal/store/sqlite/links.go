package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/store"
)

// linkColumns is the ordered list of columns selected in link queries.
// Must match the scan order in scanLink.
const linkColumns = `id, created_at, updated_at, deleted_at,
	token, target_url, title, created_by, visits`

// Links stores domain.Link records in the links table.
type Links struct {
	s *Store
}

// Links returns the link table.
func (s *Store) Links() *Links {
	return &Links{s: s}
}

func scanLink(scanner interface{ Scan(dest ...any) error }) (*domain.Link, error) {
	var l domain.Link

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		token     sql.NullString
	)

	err := scanner.Scan(
		&l.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&token,
		&l.TargetURL,
		&l.Title,
		&l.CreatedBy,
		&l.Visits,
	)
	if err != nil {
		return nil, err
	}

	l.Token = token.String
	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	l.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Insert inserts a new link.
// Returns *store.ConflictError if the token is taken.
func (t *Links) Insert(ctx context.Context, l *domain.Link) error {
	_, err := t.s.db.ExecContext(ctx, `
		INSERT INTO links (
			id, created_at, updated_at, deleted_at,
			token, target_url, title, created_by, visits
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		formatTime(l.CreatedAt),
		formatTime(l.UpdatedAt),
		nullTimeString(l.DeletedAt),
		nullString(l.Token),
		l.TargetURL,
		l.Title,
		l.CreatedBy,
		l.Visits,
	)
	return uniqueViolation(err, "link", "links", l.ID, map[string]string{"token": l.Token})
}

// Update performs a full update on an existing link.
// Returns store.ErrNotFound if the link does not exist.
func (t *Links) Update(ctx context.Context, l *domain.Link) error {
	return t.update(ctx, t.s.db, l)
}

// Modify reads the link with the given id, applies fn, and writes it back in
// one transaction.
func (t *Links) Modify(ctx context.Context, id string, fn func(*domain.Link) error) (*domain.Link, error) {
	var out *domain.Link
	err := t.s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
		l, err := scanLink(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(l); err != nil {
			return err
		}
		if l.ID != id {
			return store.ErrInvalidInput.WithMessage("link id cannot change")
		}
		if err := t.update(ctx, tx, l); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Links) update(ctx context.Context, ex execer, l *domain.Link) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE links SET
			created_at = ?,
			updated_at = ?,
			deleted_at = ?,
			token = ?,
			target_url = ?,
			title = ?,
			created_by = ?,
			visits = ?
		WHERE id = ?`,
		formatTime(l.CreatedAt),
		formatTime(l.UpdatedAt),
		nullTimeString(l.DeletedAt),
		nullString(l.Token),
		l.TargetURL,
		l.Title,
		l.CreatedBy,
		l.Visits,
		l.ID,
	)
	if err != nil {
		return uniqueViolation(err, "link", "links", l.ID, map[string]string{"token": l.Token})
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindOne retrieves a link by a unique column.
// Returns store.ErrNotFound if no link matches.
func (t *Links) FindOne(ctx context.Context, field, value string) (*domain.Link, error) {
	if field != "token" && field != "id" {
		return nil, fmt.Errorf("link has no index on %s", field)
	}

	row := t.s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE `+field+` = ?`, value)

	l, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}
