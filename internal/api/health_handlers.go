package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nurole/shorttoken/internal/http/response"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	db := s.checkDatabase(r.Context())

	resp := HealthResponse{
		Status:     db.Status,
		Components: map[string]ComponentHealth{"database": db},
	}

	status := http.StatusOK
	if db.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp, s.logger)
}

// checkDatabase verifies the storage backend is reachable.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	// The in-memory backend has nothing to ping.
	if s.db == nil {
		return ComponentHealth{Status: "healthy", Message: s.opts.Backend}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := s.db.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		s.logger.Error("Health check failed", "backend", s.opts.Backend, "error", err)
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
		Message: s.opts.Backend,
	}
}
