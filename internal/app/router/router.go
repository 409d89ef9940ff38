package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/domain"
	"orderpulse/pkg/logging"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("event-router")

type transportRef struct {
	contracts.Transport
}

// Router decides which channels an order event goes to and hands each
// broadcast to the transport. It holds no state besides the transport
// it was attached to; until then every emit is a no-op.
type Router struct {
	log       *slog.Logger
	transport atomic.Pointer[transportRef]
	now       func() time.Time
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{log: log, now: time.Now}
}

// Attach wires the transport once it has been brought up.
func (r *Router) Attach(t contracts.Transport) {
	if t == nil {
		r.transport.Store(nil)
		return
	}
	r.transport.Store(&transportRef{t})
}

// Detach stops routing, used on shutdown.
func (r *Router) Detach() {
	r.transport.Store(nil)
}

// Channels lists the channels an order update is broadcast to, in
// broadcast order. Equal ids on different branches are not merged.
func Channels(order domain.Order) []string {
	channels := []string{domain.RoleChannel(domain.RoleAdmin)}
	if order.AssignedPharmacyID != "" {
		channels = append(channels, domain.PharmacyChannel(order.AssignedPharmacyID))
	}
	if order.AssignedDeliveryOfficerID != "" {
		channels = append(channels, domain.UserChannel(order.AssignedDeliveryOfficerID))
	}
	if order.CustomerID != "" {
		channels = append(channels, domain.UserChannel(order.CustomerID))
	}
	return channels
}

func (r *Router) EmitOrderUpdate(ctx context.Context, order domain.Order, updateType string) {
	ref := r.transport.Load()
	if ref == nil {
		r.log.DebugContext(ctx, "router - emit order update - transport not ready", logging.Order(order.ID))
		return
	}
	ctx, span := tracer.Start(ctx, "Router.EmitOrderUpdate", trace.WithAttributes(
		attribute.String("order_id", order.ID),
		attribute.String("update_type", updateType),
	))
	defer span.End()

	data, err := json.Marshal(domain.OrderUpdateEvent{
		Type:       domain.TypeOrderUpdate,
		UpdateType: updateType,
		Order:      order,
		EmittedAt:  r.now(),
	})
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - emit order update - marshal failed", logging.Order(order.ID), logging.Err(err))
		return
	}

	channels := Channels(order)
	span.SetAttributes(attribute.StringSlice("channels", channels))
	failed := 0
	for _, ch := range channels {
		if err := ref.Broadcast(ctx, ch, data); err != nil {
			failed++
			span.RecordError(err)
			r.log.WarnContext(ctx, "router - emit order update - broadcast failed", logging.Order(order.ID), logging.Channel(ch), logging.Err(err))
		}
	}
	if failed > 0 {
		span.SetStatus(codes.Error, "partial broadcast failure")
	}
	r.log.DebugContext(ctx, "router - emit order update - routed", logging.Order(order.ID), "update_type", updateType, "channels", len(channels), "failed", failed)
}

func (r *Router) EmitStatusUpdate(ctx context.Context, orderID, status, updatedBy string) {
	ref := r.transport.Load()
	if ref == nil {
		r.log.DebugContext(ctx, "router - emit status update - transport not ready", logging.Order(orderID))
		return
	}
	ctx, span := tracer.Start(ctx, "Router.EmitStatusUpdate", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("status", status),
	))
	defer span.End()

	data, err := json.Marshal(domain.StatusUpdateEvent{
		Type:      domain.TypeStatusUpdate,
		OrderID:   orderID,
		Status:    status,
		UpdatedBy: updatedBy,
		EmittedAt: r.now(),
	})
	if err != nil {
		span.RecordError(err)
		r.log.ErrorContext(ctx, "router - emit status update - marshal failed", logging.Order(orderID), logging.Err(err))
		return
	}
	if err := ref.BroadcastAll(ctx, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failure")
		r.log.WarnContext(ctx, "router - emit status update - broadcast failed", logging.Order(orderID), logging.Err(err))
		return
	}
	r.log.DebugContext(ctx, "router - emit status update - routed", logging.Order(orderID), "status", status)
}

var _ contracts.EventRouter = (*Router)(nil)
