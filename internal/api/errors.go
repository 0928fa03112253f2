package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nurole/shorttoken/internal/http/response"
)

// maxBodyBytes caps request bodies. Link and invite payloads are tiny.
const maxBodyBytes = 64 << 10

// decodeJSON reads a JSON body into dst, writing a 400 on failure.
// Returns false when the handler should stop.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, "Request body is empty", s.logger)
		case errors.As(err, &maxErr):
			response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", s.logger)
		default:
			response.BadRequest(w, "Invalid request body", s.logger)
		}
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses.
func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	response.HandleError(w, err, s.logger)
}
