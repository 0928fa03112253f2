package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nurole/shorttoken/internal/domain"
	domainerrors "github.com/nurole/shorttoken/internal/errors"
	"github.com/nurole/shorttoken/internal/guard"
	"github.com/nurole/shorttoken/internal/id"
	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/token"
)

// LinkService creates and resolves short links.
type LinkService struct {
	repo      *record.Repository[domain.Link]
	modifier  record.Modifier[domain.Link] // nil if the store cannot modify atomically
	policy    token.Policy
	logger    *slog.Logger
	publicURL string // Base URL for generating short links
}

// NewLinkService creates a link service on top of s. Every write goes through
// the token guard configured by policy.
func NewLinkService(
	s record.Store[domain.Link],
	policy token.Policy,
	logger *slog.Logger,
	publicURL string,
	opts ...guard.Option,
) (*LinkService, error) {
	typ := newRecordType("link", func(l *domain.Link) *domain.Meta { return &l.Meta })
	opts = append([]guard.Option{guard.WithLogger(logger)}, opts...)
	if err := guard.Install(typ, domain.LinkToken, policy, opts...); err != nil {
		return nil, err
	}

	return &LinkService{
		repo:      record.NewRepository(typ, s),
		modifier:  modifierOf(s),
		policy:    policy,
		logger:    logger,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// CreateLinkRequest contains the data needed to create a link.
type CreateLinkRequest struct {
	TargetURL string `json:"target_url" validate:"required,http_url,max=2048"`
	Title     string `json:"title" validate:"max=200"`
	CreatedBy string `json:"created_by" validate:"max=100"`
}

// RetargetLinkRequest changes where a link points.
type RetargetLinkRequest struct {
	TargetURL string `json:"target_url" validate:"required,http_url,max=2048"`
}

// LinkResponse is returned for link reads and writes.
type LinkResponse struct {
	*domain.Link
	ShortURL string `json:"short_url"`
}

// Create stores a new link and assigns it a token.
func (s *LinkService) Create(ctx context.Context, req CreateLinkRequest) (*LinkResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	linkID, err := id.Generate("link")
	if err != nil {
		return nil, fmt.Errorf("generate link ID: %w", err)
	}

	link := &domain.Link{
		Meta:      domain.Meta{ID: linkID},
		TargetURL: req.TargetURL,
		Title:     req.Title,
		CreatedBy: req.CreatedBy,
	}

	if err := s.repo.Save(ctx, link); err != nil {
		return nil, writeError(err, "link")
	}

	if s.logger != nil {
		s.logger.Info("Link created",
			"link_id", link.ID,
			"token", link.Token,
			"target_url", link.TargetURL,
		)
	}

	return s.response(link), nil
}

// Get returns the link holding tok.
func (s *LinkService) Get(ctx context.Context, tok string) (*LinkResponse, error) {
	link, err := s.find(ctx, tok)
	if err != nil {
		return nil, err
	}
	return s.response(link), nil
}

// Resolve returns the link holding tok and counts the visit.
//
// The count is incremented atomically in the store when the backend supports
// record.Modifier. Otherwise the link is read and saved back, and concurrent
// visits may overwrite each other's count.
func (s *LinkService) Resolve(ctx context.Context, tok string) (*domain.Link, error) {
	link, err := s.find(ctx, tok)
	if err != nil {
		return nil, err
	}

	if s.modifier != nil {
		counted, err := s.modifier.Modify(ctx, link.ID, func(l *domain.Link) error {
			l.Visits++
			l.Touch()
			return nil
		})
		if err == nil {
			return counted, nil
		}
		s.visitNotRecorded(tok, err)
		return link, nil
	}

	link.Visits++
	if err := s.repo.Save(ctx, link); err != nil {
		s.visitNotRecorded(tok, err)
	}
	return link, nil
}

// visitNotRecorded logs a failed visit count. The redirect still works.
func (s *LinkService) visitNotRecorded(tok string, err error) {
	if s.logger != nil {
		s.logger.Warn("Failed to record link visit", "token", tok, "error", err)
	}
}

// Retarget points an existing link somewhere else. The token never changes.
func (s *LinkService) Retarget(ctx context.Context, tok string, req RetargetLinkRequest) (*LinkResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	link, err := s.find(ctx, tok)
	if err != nil {
		return nil, err
	}

	link.TargetURL = req.TargetURL
	if err := s.repo.Save(ctx, link); err != nil {
		return nil, writeError(err, "link")
	}

	if s.logger != nil {
		s.logger.Info("Link retargeted", "link_id", link.ID, "token", link.Token, "target_url", link.TargetURL)
	}

	return s.response(link), nil
}

// find looks a link up by token. Malformed tokens are reported as not found
// without touching the store.
func (s *LinkService) find(ctx context.Context, tok string) (*domain.Link, error) {
	if !token.Valid(tok, s.policy) {
		return nil, domainerrors.NotFound("link not found")
	}

	link, err := guard.FindByToken[domain.Link](ctx, s.repo, s.policy, tok)
	if err != nil {
		return nil, fmt.Errorf("find link: %w", err)
	}
	if link == nil || link.IsDeleted() {
		return nil, domainerrors.NotFound("link not found")
	}
	return link, nil
}

func (s *LinkService) response(link *domain.Link) *LinkResponse {
	return &LinkResponse{
		Link:     link,
		ShortURL: s.publicURL + "/r/" + link.Param(),
	}
}
