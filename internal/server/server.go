package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hikmah-systems/isnad/internal/feed"
	"github.com/hikmah-systems/isnad/internal/trust"
)

// Server is the main HTTP server for the isnad API.
type Server struct {
	trust   *trust.Service
	hub     *feed.Hub
	secret  string
	mux     *http.ServeMux
	limiter *rateLimiter
}

// New creates a new Server with all routes registered. ratePerMinute
// is the per-IP request allowance; values below 1 fall back to the
// default of 120.
func New(svc *trust.Service, hub *feed.Hub, secret string, ratePerMinute int) *Server {
	if ratePerMinute < 1 {
		ratePerMinute = 120
	}
	s := &Server{
		trust:   svc,
		hub:     hub,
		secret:  secret,
		mux:     http.NewServeMux(),
		limiter: newRateLimiter(ratePerMinute, time.Minute),
	}
	s.routes()
	return s
}

// Close stops the server's background rate limiter sweeper.
func (s *Server) Close() {
	s.limiter.stop()
}

// ServeHTTP implements http.Handler with per-IP rate limiting.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(getIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Agents
	s.mux.HandleFunc("POST /api/agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("GET /api/agents/{id}/reputation", s.handleGetReputation)
	s.mux.HandleFunc("GET /api/agents/{id}/history", s.handleReputationHistory)
	s.mux.HandleFunc("GET /api/agents/{id}/vouches", s.handleListVouches)

	// Vouches
	s.mux.HandleFunc("POST /api/vouches", s.handleGiveVouch)
	s.mux.HandleFunc("DELETE /api/vouches/{voucher}/{vouchee}", s.handleRevokeVouch)

	// Tasks and reviews
	s.mux.HandleFunc("POST /api/tasks", s.handlePostTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/claim", s.handleClaimTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleCompleteTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/review", s.handleSubmitReview)

	// Trust paths
	s.mux.HandleFunc("GET /api/isnad", s.handleIsnad)

	// Admin
	s.mux.HandleFunc("POST /api/admin/maintenance", s.handleMaintenance)

	// Event feed
	s.mux.HandleFunc("GET /api/feed", feed.HandleWebSocket(s.hub))
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "isnad",
	})
}

// adminAuth checks the X-Admin-Secret header against the server secret.
// Returns false (writing a 401) if the header is missing or incorrect.
func (s *Server) adminAuth(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Admin-Secret") != s.secret {
		writeError(w, http.StatusUnauthorized, "invalid admin secret")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
