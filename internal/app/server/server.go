package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"orderpulse/internal/app/server/handlers"
	"orderpulse/pkg/middleware"
)

type Server struct {
	mux          *http.ServeMux
	addr         string
	name         string
	serviceToken string
	log          *slog.Logger
	wsHandler    *handlers.WSHandler
	events       *handlers.EventsHandler
	diagnostics  *handlers.DiagnosticsHandler
	tokens       *handlers.TokenHandler
	http         *http.Server
}

func NewServer(
	log *slog.Logger,
	name string,
	addr string,
	serviceToken string,
	wsHandler *handlers.WSHandler,
	events *handlers.EventsHandler,
	diagnostics *handlers.DiagnosticsHandler,
	tokens *handlers.TokenHandler,
) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		addr:         addr,
		name:         name,
		serviceToken: serviceToken,
		log:          log,
		wsHandler:    wsHandler,
		events:       events,
		diagnostics:  diagnostics,
		tokens:       tokens,
	}

	s.routes()
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	// 1. Initialize Middleware
	intake := middleware.ServiceAuth(s.serviceToken)

	// 2. Public Routes
	s.mux.HandleFunc("GET /healthz", s.diagnostics.Health)
	s.mux.HandleFunc("GET /ws", s.wsHandler.Handler)

	// 3. Protected Routes
	s.mux.Handle("POST /events/orders", intake(http.HandlerFunc(s.events.OrderUpdate)))
	s.mux.Handle("POST /events/status", intake(http.HandlerFunc(s.events.StatusUpdate)))
	s.mux.Handle("POST /tokens", intake(http.HandlerFunc(s.tokens.Issue)))
	s.mux.Handle("GET /connections", intake(http.HandlerFunc(s.diagnostics.Connections)))
	s.mux.Handle("GET /connections/{userID}", intake(http.HandlerFunc(s.diagnostics.Connection)))
	s.mux.Handle("GET /presence/{role}", intake(http.HandlerFunc(s.diagnostics.Presence)))
}

// Handler returns the mux wrapped in tracing and request logging.
func (s *Server) Handler() http.Handler {
	return middleware.TracerMiddleware(s.name, s.route)(middleware.RequestLogger(s.log)(s.mux))
}

func (s *Server) route(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	return pattern
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("server - start - listening", slog.String("addr", s.addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are
// not tracked by net/http and are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
