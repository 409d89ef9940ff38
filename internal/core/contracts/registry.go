package contracts

import (
	"context"
	"orderpulse/internal/core/domain"
)

// ConnectionRegistry is the single source of truth for who is currently
// reachable and as whom.
type ConnectionRegistry interface {
	// Authenticate binds the identity to sessionID, replacing any earlier
	// binding for the same user. The replaced record, if any, is returned.
	Authenticate(sessionID string, id domain.Identity) (*domain.Connection, error)
	// Disconnect drops the record bound to sessionID. A session that never
	// authenticated or was already superseded is ignored.
	Disconnect(sessionID string) (domain.Connection, bool)
	// Lookup returns the live record for userID.
	Lookup(userID string) (domain.Connection, bool)
	// LookupSession returns the live record owned by sessionID.
	LookupSession(sessionID string) (domain.Connection, bool)
}

// Client represents the minimal interface required by the hub to
// communicate with an individual WebSocket connection.
type Client interface {
	SessionID() string
	Send(ctx context.Context, data []byte) error
	Close()
}
