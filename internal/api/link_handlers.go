package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nurole/shorttoken/internal/http/response"
	"github.com/nurole/shorttoken/internal/service"
)

// handleCreateLink stores a new link under a freshly generated token.
func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	link, err := s.links.Create(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	w.Header().Set("Location", link.ShortURL)
	response.Created(w, link, s.logger)
}

// handleGetLink returns a link without counting a visit.
func (s *Server) handleGetLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.links.Get(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response.Success(w, link, s.logger)
}

// handleRetargetLink points an existing token at a new URL.
func (s *Server) handleRetargetLink(w http.ResponseWriter, r *http.Request) {
	var req service.RetargetLinkRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	link, err := s.links.Retarget(r.Context(), chi.URLParam(r, "token"), req)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response.Success(w, link, s.logger)
}

// handleRedirect resolves a token and redirects to its target.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	link, err := s.links.Resolve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.TargetURL, http.StatusFound)
}
