package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nurole/shorttoken/internal/domain"
	domainerrors "github.com/nurole/shorttoken/internal/errors"
	"github.com/nurole/shorttoken/internal/guard"
	"github.com/nurole/shorttoken/internal/id"
	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/token"
)

// defaultInviteExpiry is the default time until an invite expires.
const defaultInviteExpiry = 7 * 24 * time.Hour // 7 days

// InviteService handles invite creation, lookup, and claiming.
type InviteService struct {
	repo      *record.Repository[domain.Invite]
	modifier  record.Modifier[domain.Invite] // nil if the store cannot modify atomically
	policy    token.Policy
	logger    *slog.Logger
	publicURL string // Base URL for generating invite links
}

// NewInviteService creates an invite service on top of s. Invite codes are
// guarded by policy; the email field is unique but never retried.
func NewInviteService(
	s record.Store[domain.Invite],
	policy token.Policy,
	logger *slog.Logger,
	publicURL string,
	opts ...guard.Option,
) (*InviteService, error) {
	typ := newRecordType("invite", func(i *domain.Invite) *domain.Meta { return &i.Meta })
	if err := typ.DeclareField(domain.InviteEmail); err != nil {
		return nil, err
	}
	opts = append([]guard.Option{guard.WithLogger(logger)}, opts...)
	if err := guard.Install(typ, domain.InviteCode, policy, opts...); err != nil {
		return nil, err
	}

	return &InviteService{
		repo:      record.NewRepository(typ, s),
		modifier:  modifierOf(s),
		policy:    policy,
		logger:    logger,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// CreateInviteRequest contains the data needed to create an invite.
type CreateInviteRequest struct {
	Name          string `json:"name" validate:"required,max=100"`
	Email         string `json:"email" validate:"required,email"`
	ExpiresInDays int    `json:"expires_in_days" validate:"gte=0,lte=90"` // 0 = use default (7 days)
}

// InviteResponse is returned after creating an invite.
type InviteResponse struct {
	*domain.Invite
	Status string `json:"status"`
	URL    string `json:"url"` // Full URL for sharing
}

// Create creates a new invite with a fresh code.
func (s *InviteService) Create(ctx context.Context, req CreateInviteRequest) (*InviteResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	inviteID, err := id.Generate("invite")
	if err != nil {
		return nil, fmt.Errorf("generate invite ID: %w", err)
	}

	expiresIn := defaultInviteExpiry
	if req.ExpiresInDays > 0 {
		expiresIn = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	invite := &domain.Invite{
		Meta:      domain.Meta{ID: inviteID},
		Name:      req.Name,
		Email:     domain.NormalizeEmail(req.Email),
		ExpiresAt: time.Now().Add(expiresIn),
	}

	if err := s.repo.Save(ctx, invite); err != nil {
		return nil, writeError(err, "invite")
	}

	if s.logger != nil {
		s.logger.Info("Invite created",
			"invite_id", invite.ID,
			"name", invite.Name,
			"email", invite.Email,
			"expires_at", invite.ExpiresAt,
		)
	}

	return s.response(invite), nil
}

// GetByCode returns the invite holding code, whatever its status.
func (s *InviteService) GetByCode(ctx context.Context, code string) (*InviteResponse, error) {
	invite, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.response(invite), nil
}

// Claim marks the invite as used. Claimed and expired invites are rejected.
// With a store that supports record.Modifier the check and the write are one
// atomic step, so concurrent claims of the same code have a single winner.
func (s *InviteService) Claim(ctx context.Context, code string) (*InviteResponse, error) {
	invite, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.modifier != nil {
		invite, err = s.modifier.Modify(ctx, invite.ID, func(inv *domain.Invite) error {
			if err := claim(inv); err != nil {
				return err
			}
			inv.Touch()
			return nil
		})
	} else if err = claim(invite); err == nil {
		err = s.repo.Save(ctx, invite)
	}
	if err != nil {
		return nil, writeError(err, "invite")
	}

	if s.logger != nil {
		s.logger.Info("Invite claimed", "invite_id", invite.ID, "email", invite.Email)
	}

	return s.response(invite), nil
}

// claim marks inv as claimed now, unless it is already claimed or expired.
func claim(inv *domain.Invite) error {
	switch {
	case inv.IsClaimed():
		return domainerrors.Conflict("invite has already been claimed")
	case inv.IsExpired():
		return domainerrors.Gone("invite has expired")
	}
	now := time.Now()
	inv.ClaimedAt = &now
	return nil
}

func (s *InviteService) find(ctx context.Context, code string) (*domain.Invite, error) {
	if !token.Valid(code, s.policy) {
		return nil, domainerrors.NotFound("invite not found")
	}

	invite, err := guard.FindByToken[domain.Invite](ctx, s.repo, s.policy, code)
	if err != nil {
		return nil, fmt.Errorf("find invite: %w", err)
	}
	if invite == nil || invite.IsDeleted() {
		return nil, domainerrors.NotFound("invite not found")
	}
	return invite, nil
}

func (s *InviteService) response(invite *domain.Invite) *InviteResponse {
	return &InviteResponse{
		Invite: invite,
		Status: invite.Status(),
		URL:    s.publicURL + "/join/" + invite.Code,
	}
}
