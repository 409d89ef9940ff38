package contracts

import (
	"context"
	"orderpulse/internal/core/domain"
	"time"
)

// For each role, use ZSET to store presence info
type PresenceStore interface {
	// MarkOnline refreshes the user's timestamp in the role set
	MarkOnline(ctx context.Context, role domain.Role, userID string, ttl time.Duration) error
	// MarkOffline removes the user from the role set
	MarkOffline(ctx context.Context, role domain.Role, userID string) error
	// Online returns the user ids seen within window
	Online(ctx context.Context, role domain.Role, window time.Duration) ([]string, error)
}
