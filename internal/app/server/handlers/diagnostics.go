package handlers

import (
	"encoding/json"
	"net/http"
	"orderpulse/internal/app/hub"
	"orderpulse/internal/app/registry"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/pkg/logging"
	"time"
)

type DiagnosticsHandler struct {
	registry *registry.Registry
	hub      *hub.Hub
	presence contracts.PresenceStore
	window   time.Duration
}

func NewDiagnosticsHandler(reg *registry.Registry, h *hub.Hub, presence contracts.PresenceStore, window time.Duration) *DiagnosticsHandler {
	return &DiagnosticsHandler{registry: reg, hub: h, presence: presence, window: window}
}

type connectionView struct {
	UserID          string    `json:"user_id"`
	SessionID       string    `json:"session_id"`
	Role            string    `json:"role"`
	PharmacyID      string    `json:"pharmacy_id,omitempty"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
	Channels        []string  `json:"channels"`
}

func viewOf(rec domain.Connection, channels []string) connectionView {
	return connectionView{
		UserID:          rec.UserID,
		SessionID:       rec.SessionID,
		Role:            string(rec.Role),
		PharmacyID:      rec.PharmacyID,
		AuthenticatedAt: rec.AuthenticatedAt,
		Channels:        channels,
	}
}

// Connections lists every live record ordered by user id.
func (h *DiagnosticsHandler) Connections(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Snapshot()
	out := make([]connectionView, 0, len(snap))
	for _, rec := range snap {
		out = append(out, viewOf(rec, h.hub.ChannelsOf(rec.SessionID)))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"connections": out})
}

func (h *DiagnosticsHandler) Connection(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.registry.Lookup(r.PathValue("userID"))
	if !ok {
		http.Error(w, "not connected", http.StatusNotFound)
		return
	}
	writeJSON(w, r, http.StatusOK, viewOf(rec, h.hub.ChannelsOf(rec.SessionID)))
}

func (h *DiagnosticsHandler) Presence(w http.ResponseWriter, r *http.Request) {
	role, err := domain.ParseRole(r.PathValue("role"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	users, err := h.presence.Online(r.Context(), role, h.window)
	if err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "diagnostics - presence - online failed", logging.Role(string(role)), logging.Err(err))
		http.Error(w, "presence unavailable", http.StatusServiceUnavailable)
		return
	}
	if users == nil {
		users = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"role": role, "users": users})
}

func (h *DiagnosticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.hub.SessionCount(),
		"users":    h.registry.Count(),
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "handlers - write json - encode failed", logging.Err(err))
	}
}
