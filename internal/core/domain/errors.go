package domain

import "errors"

var (
	ErrUnknownRole     = errors.New("unknown role")
	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionNotFound = errors.New("session not found")
	ErrClientClosed    = errors.New("client closed")
	ErrSendBufferFull  = errors.New("client send buffer full")
	ErrInvalidEvent    = errors.New("invalid event")
)
