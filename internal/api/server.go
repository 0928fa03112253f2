// Package api provides the HTTP API server and handlers for the short token service.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nurole/shorttoken/internal/ratelimit"
	"github.com/nurole/shorttoken/internal/service"
)

// Pinger reports whether a storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins lists origins permitted by CORS. Empty disables CORS headers.
	AllowedOrigins []string
	// Backend names the storage backend reported by the health check.
	Backend string
	// TrustProxy takes the client IP from True-Client-IP, X-Real-IP or
	// X-Forwarded-For. Enable it only behind a proxy that overwrites them;
	// otherwise clients choose their own rate limit key.
	TrustProxy bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	links   *service.LinkService
	invites *service.InviteService
	limiter *ratelimit.KeyedRateLimiter
	db      Pinger
	opts    Options
	router  *chi.Mux
	logger  *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// limiter and db may be nil.
func NewServer(
	links *service.LinkService,
	invites *service.InviteService,
	limiter *ratelimit.KeyedRateLimiter,
	db Pinger,
	opts Options,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		links:   links,
		invites: invites,
		limiter: limiter,
		db:      db,
		opts:    opts,
		router:  chi.NewRouter(),
		logger:  logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(s.logRequests)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	if len(s.opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Location"},
			MaxAge:         300,
		}))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	// Public short link redirect. Lookups are rate limited so the token
	// space cannot be enumerated cheaply.
	s.router.With(s.rateLimit).Get("/r/{token}", s.handleRedirect)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/links", func(r chi.Router) {
			r.Post("/", s.handleCreateLink)
			r.With(s.rateLimit).Get("/{token}", s.handleGetLink)
			r.Patch("/{token}", s.handleRetargetLink)
		})

		r.Route("/invites", func(r chi.Router) {
			r.Post("/", s.handleCreateInvite)
			r.With(s.rateLimit).Get("/{code}", s.handleGetInvite)
			r.With(s.rateLimit).Post("/{code}/claim", s.handleClaimInvite)
		})
	})
}
