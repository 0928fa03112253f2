package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/store"
)

// inviteColumns is the ordered list of columns selected in invite queries.
// Must match the scan order in scanInvite.
const inviteColumns = `id, created_at, updated_at, deleted_at,
	code, email, name, expires_at, claimed_at`

// Invites stores domain.Invite records in the invites table.
type Invites struct {
	s *Store
}

// Invites returns the invite table.
func (s *Store) Invites() *Invites {
	return &Invites{s: s}
}

// scanInvite scans a sql.Row (or sql.Rows via its Scan method) into a domain.Invite.
func scanInvite(scanner interface{ Scan(dest ...any) error }) (*domain.Invite, error) {
	var inv domain.Invite

	var (
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		code      sql.NullString
		expiresAt string
		claimedAt sql.NullString
	)

	err := scanner.Scan(
		&inv.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&code,
		&inv.Email,
		&inv.Name,
		&expiresAt,
		&claimedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Code = code.String

	// Parse timestamps.
	inv.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	inv.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	inv.DeletedAt, err = parseNullableTime(deletedAt)
	if err != nil {
		return nil, err
	}
	inv.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, err
	}
	inv.ClaimedAt, err = parseNullableTime(claimedAt)
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

func inviteValues(inv *domain.Invite) map[string]string {
	return map[string]string{"code": inv.Code, "email": domain.NormalizeEmail(inv.Email)}
}

// Insert inserts a new invite.
// Returns *store.ConflictError naming the column if the code or email is taken.
func (t *Invites) Insert(ctx context.Context, inv *domain.Invite) error {
	_, err := t.s.db.ExecContext(ctx, `
		INSERT INTO invites (
			id, created_at, updated_at, deleted_at,
			code, email, name, expires_at, claimed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		formatTime(inv.CreatedAt),
		formatTime(inv.UpdatedAt),
		nullTimeString(inv.DeletedAt),
		nullString(inv.Code),
		domain.NormalizeEmail(inv.Email),
		inv.Name,
		formatTime(inv.ExpiresAt),
		nullTimeString(inv.ClaimedAt),
	)
	return uniqueViolation(err, "invite", "invites", inv.ID, inviteValues(inv))
}

// Update performs a full update on an existing invite.
// Returns store.ErrNotFound if the invite does not exist.
func (t *Invites) Update(ctx context.Context, inv *domain.Invite) error {
	return t.update(ctx, t.s.db, inv)
}

// Modify reads the invite with the given id, applies fn, and writes it back in
// one transaction.
func (t *Invites) Modify(ctx context.Context, id string, fn func(*domain.Invite) error) (*domain.Invite, error) {
	var out *domain.Invite
	err := t.s.inTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id = ?`, id)
		inv, err := scanInvite(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := fn(inv); err != nil {
			return err
		}
		if inv.ID != id {
			return store.ErrInvalidInput.WithMessage("invite id cannot change")
		}
		if err := t.update(ctx, tx, inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Invites) update(ctx context.Context, ex execer, inv *domain.Invite) error {
	result, err := ex.ExecContext(ctx, `
		UPDATE invites SET
			created_at = ?,
			updated_at = ?,
			deleted_at = ?,
			code = ?,
			email = ?,
			name = ?,
			expires_at = ?,
			claimed_at = ?
		WHERE id = ?`,
		formatTime(inv.CreatedAt),
		formatTime(inv.UpdatedAt),
		nullTimeString(inv.DeletedAt),
		nullString(inv.Code),
		domain.NormalizeEmail(inv.Email),
		inv.Name,
		formatTime(inv.ExpiresAt),
		nullTimeString(inv.ClaimedAt),
		inv.ID,
	)
	if err != nil {
		return uniqueViolation(err, "invite", "invites", inv.ID, inviteValues(inv))
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

// FindOne retrieves an invite by a unique column.
// Returns store.ErrNotFound if no invite matches.
func (t *Invites) FindOne(ctx context.Context, field, value string) (*domain.Invite, error) {
	switch field {
	case "id", "code":
	case "email":
		value = domain.NormalizeEmail(value)
	default:
		return nil, fmt.Errorf("invite has no index on %s", field)
	}

	row := t.s.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites WHERE `+field+` = ?`, value)

	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}
