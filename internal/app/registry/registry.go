package registry

import (
	"fmt"
	"orderpulse/internal/core/domain"
	"sort"
	"sync"
	"time"
)

// Registry tracks which user is bound to which live session. One mutex
// guards both indexes so that authenticate and disconnect for the same user
// are applied atomically with respect to each other.
type Registry struct {
	mu        sync.RWMutex
	byUser    map[string]domain.Connection // user_id → record
	bySession map[string]string            // session_id → user_id
	now       func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]domain.Connection),
		bySession: make(map[string]string),
		now:       time.Now,
	}
}

// Authenticate inserts or replaces the record for id.UserID. A superseded
// session is only untracked here; closing it is up to the transport.
func (r *Registry) Authenticate(sessionID string, id domain.Identity) (*domain.Connection, error) {
	if sessionID == "" || id.UserID == "" {
		return nil, domain.ErrInvalidIdentity
	}
	if !id.Role.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, id.Role)
	}
	rec := domain.Connection{
		UserID:          id.UserID,
		SessionID:       sessionID,
		Role:            id.Role,
		PharmacyID:      id.PharmacyID,
		AuthenticatedAt: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A session re-authenticating as somebody else releases its old user.
	if other, ok := r.bySession[sessionID]; ok && other != id.UserID {
		delete(r.byUser, other)
	}
	prev, existed := r.byUser[id.UserID]
	if existed && prev.SessionID != sessionID {
		delete(r.bySession, prev.SessionID)
	}
	r.byUser[id.UserID] = rec
	r.bySession[sessionID] = id.UserID
	if existed {
		return &prev, nil
	}
	return nil, nil
}

// Disconnect removes the record owned by sessionID. Stale or unknown
// sessions leave the registry untouched.
func (r *Registry) Disconnect(sessionID string) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.bySession[sessionID]
	if !ok {
		return domain.Connection{}, false
	}
	delete(r.bySession, sessionID)
	rec, ok := r.byUser[userID]
	if !ok || rec.SessionID != sessionID {
		return domain.Connection{}, false
	}
	delete(r.byUser, userID)
	return rec, true
}

func (r *Registry) Lookup(userID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byUser[userID]
	return rec, ok
}

// LookupSession resolves the user currently bound to sessionID.
func (r *Registry) LookupSession(sessionID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.bySession[sessionID]
	if !ok {
		return domain.Connection{}, false
	}
	rec, ok := r.byUser[userID]
	if !ok || rec.SessionID != sessionID {
		return domain.Connection{}, false
	}
	return rec, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Snapshot returns every live record ordered by user id.
func (r *Registry) Snapshot() []domain.Connection {
	r.mu.RLock()
	out := make([]domain.Connection, 0, len(r.byUser))
	for _, rec := range r.byUser {
		out = append(out, rec)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
