package contracts

import (
	"context"
	"orderpulse/internal/core/domain"
)

// Transport delivers an already encoded frame to a logical channel.
type Transport interface {
	// Broadcast sends data to every session currently joined to channel.
	Broadcast(ctx context.Context, channel string, data []byte) error
	// BroadcastAll sends data to every connected session.
	BroadcastAll(ctx context.Context, data []byte) error
}

// SessionHub owns live sessions and places them into and out of named
// channels.
type SessionHub interface {
	Add(c Client)
	Remove(sessionID string)
	Join(sessionID, channel string) error
	Leave(sessionID, channel string)
}

// EventRouter turns order changes into channel broadcasts.
type EventRouter interface {
	EmitOrderUpdate(ctx context.Context, order domain.Order, updateType string)
	EmitStatusUpdate(ctx context.Context, orderID, status, updatedBy string)
}
