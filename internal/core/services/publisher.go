package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/pkg/logging"
)

// Dispatch validates env and hands it to the matching router call.
func Dispatch(ctx context.Context, router contracts.EventRouter, env domain.EventEnvelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	switch env.Kind {
	case domain.EventKindOrderUpdate:
		router.EmitOrderUpdate(ctx, *env.Order, env.UpdateType)
	case domain.EventKindStatusUpdate:
		router.EmitStatusUpdate(ctx, env.OrderID, env.Status, env.UpdatedBy)
	}
	return nil
}

// DirectSink routes events in the calling goroutine.
type DirectSink struct {
	router contracts.EventRouter
}

func NewDirectSink(router contracts.EventRouter) *DirectSink {
	return &DirectSink{router: router}
}

func (d *DirectSink) Publish(ctx context.Context, env domain.EventEnvelope) error {
	return Dispatch(ctx, d.router, env)
}

// StreamPublisher appends events to the order event stream, where the
// event worker of any node picks them up.
type StreamPublisher struct {
	queue  contracts.MessageQueue
	stream string
	log    *slog.Logger
}

func NewStreamPublisher(log *slog.Logger, queue contracts.MessageQueue, stream string) *StreamPublisher {
	return &StreamPublisher{log: log, queue: queue, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, env domain.EventEnvelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.queue.PublishToStream(ctx, p.stream, raw); err != nil {
		p.log.ErrorContext(ctx, "publisher - publish - publish to stream failed", slog.String("stream", p.stream), logging.Err(err))
		return err
	}
	p.log.DebugContext(ctx, "publisher - publish - publish to stream success", slog.String("stream", p.stream), slog.String("kind", env.Kind))
	return nil
}

var (
	_ contracts.EventSink = (*DirectSink)(nil)
	_ contracts.EventSink = (*StreamPublisher)(nil)
)
