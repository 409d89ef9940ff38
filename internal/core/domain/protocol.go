package domain

import "time"

const (
	TypeConnected     = "connected"
	TypeAuthenticate  = "authenticate"
	TypeAuthenticated = "authenticated"
	TypeOrderUpdate   = "order_update"
	TypeStatusUpdate  = "status_update"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeError         = "error"
)

// Inbound is the envelope of every client to server frame.
type Inbound struct {
	Type string `json:"type"`
}

// AuthenticateRequest either carries a signed token or, when the server
// runs without a signing secret, the identity fields directly.
type AuthenticateRequest struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Role       string `json:"role,omitempty"`
	PharmacyID string `json:"pharmacy_id,omitempty"`
}

// ConnectedMessage is sent once right after the upgrade.
type ConnectedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type AuthenticatedMessage struct {
	Type       string   `json:"type"`
	UserID     string   `json:"user_id"`
	Role       Role     `json:"role"`
	Channels   []string `json:"channels"`
	Superseded bool     `json:"superseded,omitempty"`
}

// OrderUpdateEvent carries the full order snapshot.
type OrderUpdateEvent struct {
	Type       string    `json:"type"`
	UpdateType string    `json:"update_type"`
	Order      Order     `json:"order"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// StatusUpdateEvent is an unscoped status beacon.
type StatusUpdateEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedBy string    `json:"updated_by"`
	EmittedAt time.Time `json:"emitted_at"`
}

type PongMessage struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

// ErrorMessage is WS-safe error
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	EventKindOrderUpdate  = "order_update"
	EventKindStatusUpdate = "status_update"
)

// EventEnvelope is the shape order management writes to the event stream
// and posts to the intake endpoints.
type EventEnvelope struct {
	Kind       string `json:"kind"`
	UpdateType string `json:"update_type,omitempty"`
	Order      *Order `json:"order,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Status     string `json:"status,omitempty"`
	UpdatedBy  string `json:"updated_by,omitempty"`
}

// Validate checks the fields each kind needs.
func (e EventEnvelope) Validate() error {
	switch e.Kind {
	case EventKindOrderUpdate:
		if e.Order == nil || e.UpdateType == "" {
			return ErrInvalidEvent
		}
	case EventKindStatusUpdate:
		if e.OrderID == "" || e.Status == "" {
			return ErrInvalidEvent
		}
	default:
		return ErrInvalidEvent
	}
	return nil
}
