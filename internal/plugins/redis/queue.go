package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisMessageQueue struct {
	rdb    *redis.Client
	block  time.Duration
	maxLen int64
	log    *slog.Logger
}

func NewRedisMessageQueue(log *slog.Logger, rdb *redis.Client, block time.Duration) *RedisMessageQueue {
	return &RedisMessageQueue{rdb: rdb, block: block, maxLen: 10000, log: log}
}

func (q *RedisMessageQueue) streamKey(topic string) string {
	return "stream:" + topic
}

func (q *RedisMessageQueue) PublishToStream(ctx context.Context, topic string, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey(topic),
		MaxLen: q.maxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

// SubscribeToStream creates the consumer group if needed and starts a
// reader goroutine that lives until ctx is done.
func (q *RedisMessageQueue) SubscribeToStream(
	ctx context.Context,
	topic string,
	conGroup string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	stream := q.streamKey(topic)
	// Create group if not exists
	err := q.rdb.XGroupCreateMkStream(ctx, stream, conGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	consumerName := uuid.NewString()
	// Run in a goroutine
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				// Read new messages (">")
				res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    conGroup,
					Consumer: consumerName,
					Streams:  []string{stream, ">"},
					Count:    16,
					Block:    q.block,
				}).Result()
				if err != nil {
					if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
						q.log.ErrorContext(ctx, "queue - subscribe - stream read failed", slog.String("stream", stream), slog.String("error", err.Error()))
						time.Sleep(q.block)
					}
					continue
				}
				for _, s := range res {
					for _, msg := range s.Messages {
						raw, ok := msg.Values["data"].(string)
						if !ok {
							continue
						}
						if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
							q.log.WarnContext(ctx, "queue - subscribe - handler failed", slog.String("message_id", msg.ID), slog.String("error", err.Error()))
						}
					}
				}
			}
		}
	}()
	return nil
}

func (q *RedisMessageQueue) AcknowledgeMessage(ctx context.Context, topic, conGroup, mesgID string) error {
	return q.rdb.XAck(ctx, q.streamKey(topic), conGroup, mesgID).Err()
}

func (q *RedisMessageQueue) DeleteMessage(ctx context.Context, topic, mesgID string) error {
	return q.rdb.XDel(ctx, q.streamKey(topic), mesgID).Err()
}

func (q *RedisMessageQueue) DeleteStream(ctx context.Context, topic string) error {
	return q.rdb.Del(ctx, q.streamKey(topic)).Err()
}
