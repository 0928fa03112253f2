package domain

import (
	"strings"
	"time"

	"github.com/nurole/shorttoken/internal/record"
)

// Invite is an invitation identified publicly by a short numeric code.
type Invite struct {
	Meta
	Code      string     `json:"code"`                 // Unique, shareable invite code
	Email     string     `json:"email"`                // Unique per invite, stored lowercased
	Name      string     `json:"name"`                 // Display name for the invitee
	ExpiresAt time.Time  `json:"expires_at"`           // When the invite expires
	ClaimedAt *time.Time `json:"claimed_at,omitempty"` // When the invite was claimed
}

// IsClaimed returns true if the invite has been used.
func (i *Invite) IsClaimed() bool {
	return i.ClaimedAt != nil
}

// IsExpired returns true if the invite has passed its expiration time.
func (i *Invite) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}

// IsValid returns true if the invite can still be claimed.
func (i *Invite) IsValid() bool {
	return !i.IsClaimed() && !i.IsExpired() && !i.IsDeleted()
}

// Status returns a human-readable status string for the invite.
func (i *Invite) Status() string {
	switch {
	case i.IsDeleted():
		return "revoked"
	case i.IsClaimed():
		return "claimed"
	case i.IsExpired():
		return "expired"
	default:
		return "pending"
	}
}

// InviteID returns the primary key of an invite.
func InviteID(i *Invite) string { return i.ID }

// InviteCode is the invite's token field.
var InviteCode = record.Field[Invite]{
	Name:   "code",
	Get:    func(i *Invite) string { return i.Code },
	Set:    func(i *Invite, v string) { i.Code = v },
	Unique: true,
}

// InviteEmail is a second unique field. Conflicts on it are ordinary errors,
// never token collisions.
var InviteEmail = record.Field[Invite]{
	Name:   "email",
	Get:    func(i *Invite) string { return NormalizeEmail(i.Email) },
	Set:    func(i *Invite, v string) { i.Email = v },
	Unique: true,
}

// NormalizeEmail lowercases and trims an email address for indexing.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
