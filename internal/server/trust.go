package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/hikmah-systems/isnad/internal/trust"
)

// writeTrustError maps trust error kinds onto HTTP status codes.
func writeTrustError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trust.ErrValidation), errors.Is(err, trust.ErrSelfVouch):
		status = http.StatusBadRequest
	case errors.Is(err, trust.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, trust.ErrInsufficientReputation),
		errors.Is(err, trust.ErrAccountTooNew),
		errors.Is(err, trust.ErrNotParticipant):
		status = http.StatusForbidden
	case errors.Is(err, trust.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, trust.ErrInvalidTaskState), errors.Is(err, trust.ErrDuplicateReview):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}

// ---------------------------------------------------------------------------
// Agent handlers
// ---------------------------------------------------------------------------

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	agent, err := s.trust.RegisterAgent(req.ID, req.Verified)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.trust.GetAgent(r.PathValue("id"))
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	report, err := s.trust.GetReputation(r.PathValue("id"))
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReputationHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.trust.ReputationHistory(r.PathValue("id"), limit)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// ---------------------------------------------------------------------------
// Vouch handlers
// ---------------------------------------------------------------------------

func (s *Server) handleGiveVouch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VoucherID     string `json:"voucher_id"`
		VoucheeID     string `json:"vouchee_id"`
		Strength      int    `json:"strength"`
		Message       string `json:"message"`
		Category      string `json:"category"`
		ExpiresInDays int    `json:"expires_in_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	vouch, circular, err := s.trust.GiveVouch(req.VoucherID, req.VoucheeID,
		req.Strength, req.Message, req.Category, req.ExpiresInDays)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"vouch":    vouch,
		"circular": circular,
	})
}

func (s *Server) handleRevokeVouch(w http.ResponseWriter, r *http.Request) {
	voucher := r.PathValue("voucher")
	vouchee := r.PathValue("vouchee")
	if err := s.trust.RevokeVouch(voucher, vouchee); err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleListVouches(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = "received"
	}
	activeOnly := r.URL.Query().Get("active") == "true"

	vouches, err := s.trust.ListVouches(r.PathValue("id"), direction, activeOnly)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vouches": vouches})
}

// ---------------------------------------------------------------------------
// Task and review handlers
// ---------------------------------------------------------------------------

func (s *Server) handlePostTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequesterID string `json:"requester_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	task, err := s.trust.PostTask(req.RequesterID)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClaimerID string `json:"claimer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.trust.ClaimTask(r.PathValue("id"), req.ClaimerID); err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "claimed"})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.trust.CompleteTask(r.PathValue("id"), req.Success); err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finished"})
}

func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReviewerID string `json:"reviewer_id"`
		Rating     int    `json:"rating"`
		Comment    string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	review, err := s.trust.SubmitReview(r.PathValue("id"), req.ReviewerID, req.Rating, req.Comment)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// ---------------------------------------------------------------------------
// Trust path handler
// ---------------------------------------------------------------------------

func (s *Server) handleIsnad(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to query parameters required")
		return
	}

	maxDepth := 0
	if v := r.URL.Query().Get("max_depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10 {
			writeError(w, http.StatusBadRequest, "max_depth must be 1-10")
			return
		}
		maxDepth = n
	}

	result, err := s.trust.FindTrustPath(from, to, maxDepth)
	if err != nil {
		writeTrustError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// Admin handlers
// ---------------------------------------------------------------------------

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuth(w, r) {
		return
	}

	result, err := s.trust.RunMaintenance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "maintenance: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
