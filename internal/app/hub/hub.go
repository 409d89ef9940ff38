package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/pkg/logging"
	"sort"
	"sync"
)

// Hub is the node-local transport: it owns the live sessions and the
// named channels they are joined to.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]contracts.Client            // session_id → client
	channels map[string]map[string]contracts.Client // channel → session_id → client
	joined   map[string]map[string]struct{}         // session_id → channels
	log      *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:  make(map[string]contracts.Client),
		channels: make(map[string]map[string]contracts.Client),
		joined:   make(map[string]map[string]struct{}),
		log:      log,
	}
}

func (h *Hub) Add(c contracts.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sid := c.SessionID()
	h.clients[sid] = c
	if h.joined[sid] == nil {
		h.joined[sid] = make(map[string]struct{})
	}
}

// Remove drops the session and every channel membership it holds.
// Closing the underlying connection stays with the caller.
func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.joined[sessionID] {
		h.leaveLocked(sessionID, ch)
	}
	delete(h.joined, sessionID)
	delete(h.clients, sessionID)
}

func (h *Hub) Join(sessionID, channel string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[sessionID]
	if !ok {
		return fmt.Errorf("join %s: %w", channel, domain.ErrSessionNotFound)
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]contracts.Client)
	}
	h.channels[channel][sessionID] = c
	h.joined[sessionID][channel] = struct{}{}
	return nil
}

func (h *Hub) Leave(sessionID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(sessionID, channel)
}

func (h *Hub) leaveLocked(sessionID, channel string) {
	if members := h.channels[channel]; members != nil {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	if set := h.joined[sessionID]; set != nil {
		delete(set, channel)
	}
}

// Broadcast attempts every member of channel and reports the failed sends
// together. An empty channel is not an error.
func (h *Hub) Broadcast(ctx context.Context, channel string, data []byte) error {
	h.mu.RLock()
	targets := make([]contracts.Client, 0, len(h.channels[channel]))
	for _, c := range h.channels[channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.send(ctx, channel, targets, data)
}

func (h *Hub) BroadcastAll(ctx context.Context, data []byte) error {
	h.mu.RLock()
	targets := make([]contracts.Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	return h.send(ctx, "", targets, data)
}

func (h *Hub) send(ctx context.Context, channel string, targets []contracts.Client, data []byte) error {
	var errs []error
	for _, c := range targets {
		if err := c.Send(ctx, data); err != nil {
			h.log.DebugContext(ctx, "hub - send - client send failed", logging.Session(c.SessionID()), logging.Channel(channel), logging.Err(err))
			errs = append(errs, fmt.Errorf("session %s: %w", c.SessionID(), err))
		}
	}
	return errors.Join(errs...)
}

// Members lists the session ids joined to channel, sorted.
func (h *Hub) Members(channel string) []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.channels[channel]))
	for sid := range h.channels[channel] {
		out = append(out, sid)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

// ChannelsOf lists the channels sessionID is joined to, sorted.
func (h *Hub) ChannelsOf(sessionID string) []string {
	h.mu.RLock()
	out := make([]string, 0, len(h.joined[sessionID]))
	for ch := range h.joined[sessionID] {
		out = append(out, ch)
	}
	h.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes every client, used at shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]contracts.Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]contracts.Client)
	h.channels = make(map[string]map[string]contracts.Client)
	h.joined = make(map[string]map[string]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}

var (
	_ contracts.Transport  = (*Hub)(nil)
	_ contracts.SessionHub = (*Hub)(nil)
)
