package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"orderpulse/internal/app/server/ws"
	"orderpulse/internal/config"
	"orderpulse/internal/core/domain"
	"orderpulse/internal/core/services"
	"orderpulse/pkg/logging"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type WSHandler struct {
	sessions services.ISessionService
	cfg      config.HubConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions services.ISessionService, cfg config.HubConfig) *WSHandler {
	h := &WSHandler{sessions: sessions, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", logging.Err(err))
		return
	}
	sessionID := uuid.NewString()
	span.SetAttributes(attribute.String("session_id", sessionID))

	// The session outlives the request context once the connection is hijacked.
	ctx, log := logging.With(context.WithoutCancel(r.Context()), logging.Session(sessionID))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	socket := ws.NewWebSocket(ctx, conn, h.cfg.WriteTimeout, h.cfg.ReadLimit)
	client := ws.NewClient(ctx, socket, sessionID, h.cfg.SendBuffer)
	defer client.Close()

	h.sessions.Connect(ctx, client)
	defer h.sessions.Disconnect(ctx, sessionID)
	reply(ctx, client, domain.ConnectedMessage{Type: domain.TypeConnected, SessionID: sessionID})
	log.InfoContext(ctx, "ws handler - ws connection established")

	go h.sessions.HandleHeartbeat(ctx, sessionID)

	// Frames of one session are handled in order so that an authenticate
	// is applied before anything that follows it.
	socket.ReadLoop(func(data []byte) {
		h.handleMessage(ctx, client, data)
	})
	log.InfoContext(ctx, "ws handler - ws connection closed")
}

func (h *WSHandler) handleMessage(ctx context.Context, client *ws.RuntimeClient, data []byte) {
	var in domain.Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		reply(ctx, client, domain.ErrorMessage{Type: domain.TypeError, Code: "bad_request", Message: "malformed frame"})
		return
	}
	switch in.Type {
	case domain.TypeAuthenticate:
		var req domain.AuthenticateRequest
		if err := json.Unmarshal(data, &req); err != nil {
			reply(ctx, client, domain.ErrorMessage{Type: domain.TypeError, Code: "bad_request", Message: "malformed authenticate"})
			return
		}
		msg, err := h.sessions.Authenticate(ctx, client.SessionID(), req)
		if err != nil {
			reply(ctx, client, domain.ErrorMessage{Type: domain.TypeError, Code: authErrorCode(err), Message: err.Error()})
			return
		}
		reply(ctx, client, msg)
	case domain.TypePing:
		reply(ctx, client, domain.PongMessage{Type: domain.TypePong, At: time.Now()})
	default:
		reply(ctx, client, domain.ErrorMessage{Type: domain.TypeError, Code: "unsupported", Message: "unsupported message type"})
	}
}

func authErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownRole):
		return "unknown_role"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, domain.ErrInvalidIdentity):
		return "invalid_identity"
	default:
		return "authenticate_failed"
	}
}

func reply(ctx context.Context, client *ws.RuntimeClient, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(ctx).ErrorContext(ctx, "ws handler - reply - marshal failed", logging.Err(err))
		return
	}
	if err := client.Send(ctx, data); err != nil {
		logging.FromContext(ctx).DebugContext(ctx, "ws handler - reply - send failed", logging.Err(err))
	}
}
