package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

type WebSocket struct {
	*websocket.Conn
	ctx          context.Context
	cancel       context.CancelFunc
	writeTimeout time.Duration
	readLimit    int64
}

func NewWebSocket(parent context.Context, conn *websocket.Conn, writeTimeout time.Duration, readLimit int64) *WebSocket {
	ctx, cancel := context.WithCancel(parent)
	return &WebSocket{
		Conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		writeTimeout: writeTimeout,
		readLimit:    readLimit,
	}
}

func (w *WebSocket) WriteMessage(data []byte) error {
	_ = w.Conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.Conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WebSocket) ReadLoop(onMsg func([]byte)) {
	// Ensure cleanup happens when the loop breaks
	defer func() {
		w.Close()
	}()

	// Configure Read Limits (Protects against memory exhaustion)
	w.Conn.SetReadLimit(w.readLimit)

	for {
		_, data, err := w.Conn.ReadMessage()
		if err != nil {
			// Check if it's a clean closure or an error
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws - read loop - unexpected close", "error", err)
			}
			break
		}

		if len(data) > 0 {
			onMsg(data)
		}
	}
}

func (w *WebSocket) Done() <-chan struct{} {
	return w.ctx.Done()
}

func (w *WebSocket) Close() {
	w.cancel()
	_ = w.Conn.Close()
}
