package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"orderpulse/internal/core/domain"
	"orderpulse/internal/core/services"
	"orderpulse/pkg/logging"
)

// TokenHandler mints authenticate tokens for the login system.
type TokenHandler struct {
	tokens *services.TokenService
}

func NewTokenHandler(tokens *services.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

type issueTokenRequest struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	PharmacyID string `json:"pharmacy_id"`
}

type issueTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	if !h.tokens.Enabled() {
		http.Error(w, "token signing disabled", http.StatusServiceUnavailable)
		return
	}
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tok, err := h.tokens.GenerateToken(domain.Identity{UserID: req.UserID, Role: role, PharmacyID: req.PharmacyID})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidIdentity) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.ErrorContext(r.Context(), "token handler - issue - generate failed", logging.User(req.UserID), logging.Err(err))
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	log.InfoContext(r.Context(), "token handler - issue - success", logging.User(req.UserID), logging.Role(string(role)))
	writeJSON(w, r, http.StatusCreated, issueTokenResponse{Token: tok, ExpiresIn: int64(h.tokens.TTL().Seconds())})
}
