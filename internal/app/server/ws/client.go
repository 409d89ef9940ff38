package ws

import (
	"context"
	"orderpulse/internal/core/domain"
	"sync"
)

// RuntimeClient is one live session: a bounded outbound queue drained by
// a single writer goroutine, which is the only goroutine writing to the
// socket.
type RuntimeClient struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ws        *WebSocket
	sessionID string
	out       chan []byte
	mu        sync.RWMutex
	closed    bool
	once      sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	sessionID string,
	buffer int,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:       ctx,
		cancel:    cancel,
		ws:        ws,
		sessionID: sessionID,
		out:       make(chan []byte, buffer),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) SessionID() string { return c.sessionID }

// Send queues data without blocking. A slow reader loses frames rather
// than stalling the broadcaster.
func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrClientClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.out)
		c.mu.Unlock()
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data, ok := <-c.out:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(data); err != nil {
				return
			}
		}
	}
}
