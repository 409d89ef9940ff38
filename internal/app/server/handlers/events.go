package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/pkg/logging"
)

// EventsHandler is the HTTP intake order management calls after it has
// persisted a change.
type EventsHandler struct {
	sink contracts.EventSink
}

func NewEventsHandler(sink contracts.EventSink) *EventsHandler {
	return &EventsHandler{sink: sink}
}

func (h *EventsHandler) OrderUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Order      *domain.Order `json:"order"`
		UpdateType string        `json:"update_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.publish(w, r, domain.EventEnvelope{
		Kind:       domain.EventKindOrderUpdate,
		UpdateType: req.UpdateType,
		Order:      req.Order,
	})
}

func (h *EventsHandler) StatusUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID   string `json:"order_id"`
		Status    string `json:"status"`
		UpdatedBy string `json:"updated_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	h.publish(w, r, domain.EventEnvelope{
		Kind:      domain.EventKindStatusUpdate,
		OrderID:   req.OrderID,
		Status:    req.Status,
		UpdatedBy: req.UpdatedBy,
	})
}

func (h *EventsHandler) publish(w http.ResponseWriter, r *http.Request, env domain.EventEnvelope) {
	log := logging.FromContext(r.Context())
	if err := h.sink.Publish(r.Context(), env); err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			log.WarnContext(r.Context(), "events handler - publish - invalid event", "kind", env.Kind)
			http.Error(w, "invalid event", http.StatusBadRequest)
			return
		}
		log.ErrorContext(r.Context(), "events handler - publish - failed", "kind", env.Kind, logging.Err(err))
		http.Error(w, "event intake unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
