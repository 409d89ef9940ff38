package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/pkg/logging"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("session-service")

type ISessionService interface {
	// Connect tracks a freshly upgraded session; it is not reachable by
	// any channel until it authenticates.
	Connect(ctx context.Context, c contracts.Client)
	// Authenticate binds the session to an identity and joins its channels.
	Authenticate(ctx context.Context, sessionID string, req domain.AuthenticateRequest) (domain.AuthenticatedMessage, error)
	// Disconnect drops the session, ignoring stale registry entries.
	Disconnect(ctx context.Context, sessionID string)
	// HandleHeartbeat refreshes presence until ctx is done.
	HandleHeartbeat(ctx context.Context, sessionID string)
}

type SessionService struct {
	// mu makes a registry change and the channel moves derived from it
	// one step, so hub membership always mirrors the registry.
	mu          sync.Mutex
	registry    contracts.ConnectionRegistry
	hub         contracts.SessionHub
	presence    contracts.PresenceStore
	tokens      *TokenService
	heartbeat   time.Duration
	presenceTTL time.Duration
	log         *slog.Logger
}

func NewSessionService(
	log *slog.Logger,
	registry contracts.ConnectionRegistry,
	hub contracts.SessionHub,
	presence contracts.PresenceStore,
	tokens *TokenService,
	heartbeat, presenceTTL time.Duration,
) *SessionService {
	return &SessionService{
		log:         log,
		registry:    registry,
		hub:         hub,
		presence:    presence,
		tokens:      tokens,
		heartbeat:   heartbeat,
		presenceTTL: presenceTTL,
	}
}

func (s *SessionService) Connect(ctx context.Context, c contracts.Client) {
	s.hub.Add(c)
	s.log.InfoContext(ctx, "session - connect - session added", logging.Session(c.SessionID()))
}

// resolve turns the authenticate payload into an identity. With a signing
// secret configured only the token is trusted.
func (s *SessionService) resolve(req domain.AuthenticateRequest) (domain.Identity, error) {
	if s.tokens != nil && s.tokens.Enabled() {
		if req.Token == "" {
			return domain.Identity{}, fmt.Errorf("%w: token required", domain.ErrInvalidToken)
		}
		id, err := s.tokens.ValidateToken(req.Token)
		if err != nil {
			return domain.Identity{}, err
		}
		if req.UserID != "" && req.UserID != id.UserID {
			return domain.Identity{}, fmt.Errorf("%w: user id does not match token", domain.ErrInvalidIdentity)
		}
		return id, nil
	}
	if req.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: user id required", domain.ErrInvalidIdentity)
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{UserID: req.UserID, Role: role, PharmacyID: req.PharmacyID}, nil
}

// channelsFor lists the channels a bound session belongs to.
func channelsFor(id domain.Identity) []string {
	channels := []string{domain.RoleChannel(id.Role), domain.UserChannel(id.UserID)}
	if id.Role == domain.RolePharmacyStaff && id.PharmacyID != "" {
		channels = append(channels, domain.PharmacyChannel(id.PharmacyID))
	}
	return channels
}

func identityOf(c domain.Connection) domain.Identity {
	return domain.Identity{UserID: c.UserID, Role: c.Role, PharmacyID: c.PharmacyID}
}

func (s *SessionService) Authenticate(
	ctx context.Context,
	sessionID string,
	req domain.AuthenticateRequest,
) (domain.AuthenticatedMessage, error) {
	ctx, span := tracer.Start(ctx, "SessionService.Authenticate", trace.WithAttributes(
		attribute.String("session_id", sessionID),
	))
	defer span.End()

	id, err := s.resolve(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authenticate rejected")
		s.log.WarnContext(ctx, "session - authenticate - rejected", logging.Session(sessionID), logging.Err(err))
		return domain.AuthenticatedMessage{}, err
	}
	span.SetAttributes(attribute.String("user_id", id.UserID), attribute.String("role", string(id.Role)))

	channels := channelsFor(id)
	prev, offline, err := s.bind(sessionID, id, channels)
	if err != nil {
		span.RecordError(err)
		s.log.WarnContext(ctx, "session - authenticate - bind failed", logging.Session(sessionID), logging.User(id.UserID), logging.Err(err))
		return domain.AuthenticatedMessage{}, err
	}
	superseded := prev != nil && prev.SessionID != sessionID
	if superseded {
		s.log.InfoContext(ctx, "session - authenticate - previous session superseded", logging.User(id.UserID), logging.Session(sessionID), slog.String("previous_session_id", prev.SessionID))
	}

	if s.presence != nil {
		for _, rec := range offline {
			if err := s.presence.MarkOffline(ctx, rec.Role, rec.UserID); err != nil {
				s.log.ErrorContext(ctx, "session - authenticate - mark offline failed", logging.User(rec.UserID), logging.Err(err))
			}
		}
		if err := s.presence.MarkOnline(ctx, id.Role, id.UserID, s.presenceTTL); err != nil {
			span.RecordError(err)
			s.log.ErrorContext(ctx, "session - authenticate - mark online failed", logging.User(id.UserID), logging.Err(err))
		}
	}
	s.log.InfoContext(ctx, "session - authenticate - success", logging.Session(sessionID), logging.User(id.UserID), logging.Role(string(id.Role)))
	return domain.AuthenticatedMessage{
		Type:       domain.TypeAuthenticated,
		UserID:     id.UserID,
		Role:       id.Role,
		Channels:   channels,
		Superseded: superseded,
	}, nil
}

// bind records the identity and moves sessions between channels under mu.
// Every session displaced by the new record leaves all the channels its
// old record entitled it to. offline lists the presence entries that no
// live record backs anymore.
func (s *SessionService) bind(
	sessionID string,
	id domain.Identity,
	channels []string,
) (prev *domain.Connection, offline []domain.Connection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, hadBefore := s.registry.LookupSession(sessionID)
	prev, err = s.registry.Authenticate(sessionID, id)
	if err != nil {
		return nil, nil, err
	}
	if hadBefore {
		s.leave(sessionID, before)
		if before.UserID != id.UserID || before.Role != id.Role {
			offline = append(offline, before)
		}
	}
	if prev != nil && prev.SessionID != sessionID {
		s.leave(prev.SessionID, *prev)
		if prev.Role != id.Role {
			offline = append(offline, *prev)
		}
	}

	for _, ch := range channels {
		if err := s.hub.Join(sessionID, ch); err != nil {
			// The session went away while authenticating.
			s.registry.Disconnect(sessionID)
			s.hub.Remove(sessionID)
			return nil, nil, err
		}
	}
	return prev, offline, nil
}

func (s *SessionService) leave(sessionID string, rec domain.Connection) {
	for _, ch := range channelsFor(identityOf(rec)) {
		s.hub.Leave(sessionID, ch)
	}
}

func (s *SessionService) Disconnect(ctx context.Context, sessionID string) {
	s.mu.Lock()
	rec, removed := s.registry.Disconnect(sessionID)
	s.hub.Remove(sessionID)
	s.mu.Unlock()
	if !removed {
		s.log.DebugContext(ctx, "session - disconnect - no live binding", logging.Session(sessionID))
		return
	}
	if s.presence != nil {
		if err := s.presence.MarkOffline(ctx, rec.Role, rec.UserID); err != nil {
			s.log.ErrorContext(ctx, "session - disconnect - mark offline failed", logging.User(rec.UserID), logging.Err(err))
		}
	}
	s.log.InfoContext(ctx, "session - disconnect - success", logging.Session(sessionID), logging.User(rec.UserID))
}

func (s *SessionService) HandleHeartbeat(ctx context.Context, sessionID string) {
	if s.presence == nil || s.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.DebugContext(ctx, "session - handle heartbeat - stopped", logging.Session(sessionID))
			return
		case <-ticker.C:
			rec, ok := s.registry.LookupSession(sessionID)
			if !ok {
				continue
			}
			if err := s.presence.MarkOnline(ctx, rec.Role, rec.UserID, s.presenceTTL); err != nil && !errors.Is(err, context.Canceled) {
				s.log.ErrorContext(ctx, "session - handle heartbeat - mark online failed", logging.User(rec.UserID), logging.Err(err))
			}
		}
	}
}

var _ ISessionService = (*SessionService)(nil)
