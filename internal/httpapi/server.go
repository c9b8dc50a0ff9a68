// Package httpapi is the request/response transport: the polling endpoints
// used by clients that cannot hold a WebSocket open, room history and
// online-list lookups, credential issuance, and operational endpoints.
package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rmechat/chat-server/internal/chat"
	"github.com/rmechat/chat-server/internal/hub"
	"github.com/rmechat/chat-server/internal/identity"
	"github.com/rmechat/chat-server/internal/metrics"
	"github.com/rmechat/chat-server/internal/ratelimit"
)

// Server wires the HTTP handlers to the fan-out hub and its collaborators.
type Server struct {
	hub       *hub.Hub
	msglog    chat.Log
	users     identity.UserStore
	tokens    *identity.TokenManager
	limiter   *ratelimit.Limiter // nil disables rate limiting
	startedAt time.Time
}

// New creates the HTTP API server. A nil limiter disables rate limiting.
func New(h *hub.Hub, msglog chat.Log, users identity.UserStore, tokens *identity.TokenManager, limiter *ratelimit.Limiter) *Server {
	return &Server{
		hub:       h,
		msglog:    msglog,
		users:     users,
		tokens:    tokens,
		limiter:   limiter,
		startedAt: time.Now(),
	}
}

// Router builds the route tree. All /api routes sit behind the per-IP rate
// limit window.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Get("/messages", s.handleMessages)
		r.Get("/messages/poll", s.handlePoll)
		r.Post("/messages/send", s.handleSend)
		r.Get("/users/online", s.handleOnline)
	})

	return r
}

// rateLimit throttles API traffic per client IP. Redis errors fail open.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			allowed, _ := s.limiter.Allow(r.Context(), clientIP(r), ratelimit.RuleAPI)
			if !allowed {
				writeJSON(w, http.StatusTooManyRequests, errorResponse("Too many requests"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
