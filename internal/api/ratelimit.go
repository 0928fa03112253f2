package api

import (
	"net"
	"net/http"

	"github.com/nurole/shorttoken/internal/http/response"
)

// rateLimit rejects lookups from a client that exceeded its budget.
// Returns 429 Too Many Requests when the limit is exceeded.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := getClientIP(r)

		if !s.limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded",
				"ip", key,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", "1")
			response.TooManyRequests(w, "Too many requests. Please try again later.", s.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP returns the host part of r.RemoteAddr. Client supplied headers
// are never read here; when the server trusts a proxy, middleware.RealIP has
// already rewritten RemoteAddr from them.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
