package redis

import (
	"context"
	"fmt"
	"log/slog"
	"orderpulse/internal/core/contracts"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// allChannel carries BroadcastAll frames. Real channel keys always hold a
// ':' so it cannot collide with them.
const allChannel = "*all*"

// Relay fans channel broadcasts out across nodes: publishing goes through
// Redis pub/sub and every node's Run loop delivers what it receives to its
// local hub.
type Relay struct {
	rdb    *redis.Client
	local  contracts.Transport
	prefix string
	log    *slog.Logger
	ready  chan struct{}
	once   sync.Once
}

func NewRelay(log *slog.Logger, rdb *redis.Client, local contracts.Transport, prefix string) *Relay {
	return &Relay{
		rdb:    rdb,
		local:  local,
		prefix: prefix,
		log:    log,
		ready:  make(chan struct{}),
	}
}

func (r *Relay) Broadcast(ctx context.Context, channel string, data []byte) error {
	return r.rdb.Publish(ctx, r.prefix+channel, data).Err()
}

func (r *Relay) BroadcastAll(ctx context.Context, data []byte) error {
	return r.rdb.Publish(ctx, r.prefix+allChannel, data).Err()
}

// Ready is closed once the pattern subscription is confirmed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes to every relayed channel and delivers to the local hub
// until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, r.prefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("relay subscribe: %w", err)
	}
	r.once.Do(func() { close(r.ready) })
	r.log.InfoContext(ctx, "relay - run - subscribed", slog.String("pattern", r.prefix+"*"))

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(ctx, msg)
		}
	}
}

func (r *Relay) deliver(ctx context.Context, msg *redis.Message) {
	channel := strings.TrimPrefix(msg.Channel, r.prefix)
	data := []byte(msg.Payload)
	var err error
	if channel == allChannel {
		err = r.local.BroadcastAll(ctx, data)
	} else {
		err = r.local.Broadcast(ctx, channel, data)
	}
	if err != nil {
		r.log.DebugContext(ctx, "relay - deliver - local broadcast failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}

var _ contracts.Transport = (*Relay)(nil)
