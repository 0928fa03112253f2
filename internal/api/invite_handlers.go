package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nurole/shorttoken/internal/http/response"
	"github.com/nurole/shorttoken/internal/service"
)

// handleCreateInvite issues an invite with a new code.
func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInviteRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	invite, err := s.invites.Create(r.Context(), req)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response.Created(w, invite, s.logger)
}

// handleGetInvite returns public details for an invite code.
func (s *Server) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := s.invites.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response.Success(w, invite, s.logger)
}

// handleClaimInvite marks an invite as used.
func (s *Server) handleClaimInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := s.invites.Claim(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	response.Success(w, invite, s.logger)
}
