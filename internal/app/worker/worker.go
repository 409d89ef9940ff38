package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/internal/core/services"
	"orderpulse/pkg/logging"
)

// EventWorker consumes the order event stream and feeds the router.
type EventWorker struct {
	log      *slog.Logger
	queue    contracts.MessageQueue
	router   contracts.EventRouter
	stream   string
	conGroup string
}

func NewEventWorker(
	log *slog.Logger,
	queue contracts.MessageQueue,
	router contracts.EventRouter,
	stream string,
	conGroup string,
) *EventWorker {
	return &EventWorker{
		log:      log,
		queue:    queue,
		router:   router,
		stream:   stream,
		conGroup: conGroup,
	}
}

func (w *EventWorker) Run(ctx context.Context) error {
	if err := w.queue.SubscribeToStream(ctx, w.stream, w.conGroup, w.ProcessMessage); err != nil {
		w.log.ErrorContext(ctx, "worker - run - subscribe to stream failed", slog.String("stream", w.stream), logging.Err(err))
		return err
	}
	w.log.InfoContext(ctx, "worker - run - subscribe to stream success", slog.String("stream", w.stream), slog.String("group", w.conGroup))
	return nil
}

// ProcessMessage routes one entry, then acknowledges and deletes it.
// Entries that cannot be decoded are dropped the same way since they would
// never succeed on redelivery.
func (w *EventWorker) ProcessMessage(
	ctx context.Context,
	messageID string,
	raw []byte,
) error {
	var env domain.EventEnvelope
	routeErr := json.Unmarshal(raw, &env)
	if routeErr != nil {
		routeErr = fmt.Errorf("%w: %v", domain.ErrInvalidEvent, routeErr)
	} else {
		routeErr = services.Dispatch(ctx, w.router, env)
	}
	if routeErr != nil {
		w.log.WarnContext(ctx, "worker - process message - dropping invalid event", logging.Message(messageID), logging.Err(routeErr))
	} else {
		w.log.DebugContext(ctx, "worker - process message - routed", logging.Message(messageID), slog.String("kind", env.Kind))
	}

	// Acknowledge the message (XACK)
	if err := w.queue.AcknowledgeMessage(ctx, w.stream, w.conGroup, messageID); err != nil {
		w.log.ErrorContext(ctx, "worker - process message - acknowledge message failed", logging.Message(messageID), logging.Err(err))
		return errors.Join(routeErr, err)
	}
	// Delete the message from the stream (XDEL)
	// This keeps the stream memory-efficient.
	if err := w.queue.DeleteMessage(ctx, w.stream, messageID); err != nil {
		// the message is already processed and ACKed.
		w.log.ErrorContext(ctx, "worker - process message - delete message failed", logging.Message(messageID), logging.Err(err))
	}
	return routeErr
}

var _ contracts.AsyncWorker = (*EventWorker)(nil)
