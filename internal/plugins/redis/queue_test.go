package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePublishSubscribeAckDelete(t *testing.T) {
	_, rdb := newTestClient(t)
	q := NewRedisMessageQueue(discardLogger(), rdb, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	require.NoError(t, q.SubscribeToStream(ctx, "order-events", "routers", func(ctx context.Context, id string, data []byte) error {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
		if err := q.AcknowledgeMessage(ctx, "order-events", "routers", id); err != nil {
			return err
		}
		return q.DeleteMessage(ctx, "order-events", id)
	}))

	require.NoError(t, q.PublishToStream(ctx, "order-events", []byte(`{"kind":"status_update"}`)))
	require.NoError(t, q.PublishToStream(ctx, "order-events", []byte(`{"kind":"order_update"}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{`{"kind":"status_update"}`, `{"kind":"order_update"}`}, got)
	mu.Unlock()

	require.Eventually(t, func() bool {
		n, err := rdb.XLen(context.Background(), "stream:order-events").Result()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)
}

func TestQueueSubscribeTwiceReusesGroup(t *testing.T) {
	_, rdb := newTestClient(t)
	q := NewRedisMessageQueue(discardLogger(), rdb, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	noop := func(ctx context.Context, id string, data []byte) error { return nil }
	require.NoError(t, q.SubscribeToStream(ctx, "order-events", "routers", noop))
	require.NoError(t, q.SubscribeToStream(ctx, "order-events", "routers", noop))
}

func TestQueueDeleteStream(t *testing.T) {
	mr, rdb := newTestClient(t)
	q := NewRedisMessageQueue(discardLogger(), rdb, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, q.PublishToStream(ctx, "order-events", []byte(`{}`)))
	assert.True(t, mr.Exists("stream:order-events"))
	require.NoError(t, q.DeleteStream(ctx, "order-events"))
	assert.False(t, mr.Exists("stream:order-events"))
}
