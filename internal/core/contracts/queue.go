package contracts

import (
	"context"
	"orderpulse/internal/core/domain"
)

type MessageQueue interface {
	// Producer side (order management)
	PublishToStream(ctx context.Context, topic string, payload []byte) error
	// Consumer side (event worker)
	// SubscribeToStream handles the reliable reading from the Redis Stream
	SubscribeToStream(ctx context.Context, topic string, conGroup string, handler func(ctx context.Context, messageID string, data []byte) error) error
	// AcknowledgeMessage removes the entry from the group's pending list
	AcknowledgeMessage(ctx context.Context, topic, conGroup, mesgID string) error
	// DeleteStream removes the stream from redis
	DeleteStream(ctx context.Context, topic string) error
	// Deletes Message from redis stream
	DeleteMessage(ctx context.Context, topic, mesgID string) error
}

// EventSink accepts order events handed over by order management.
type EventSink interface {
	Publish(ctx context.Context, env domain.EventEnvelope) error
}
