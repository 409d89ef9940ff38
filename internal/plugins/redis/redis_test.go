package redis

import (
	"context"
	"io"
	"log/slog"
	"orderpulse/internal/config"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Load().Redis
	cfg.URL = "redis://" + mr.Addr()

	rdb, err := NewRedisClient(context.Background(), *cfg)
	require.NoError(t, err)
	require.NoError(t, rdb.Close())
}

func TestNewRedisClientUnreachable(t *testing.T) {
	cfg := config.Load().Redis
	cfg.URL = "redis://127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.PingTimeout = 200 * time.Millisecond

	_, err := NewRedisClient(context.Background(), *cfg)
	require.Error(t, err)
}

func TestNewRedisClientBadURL(t *testing.T) {
	cfg := config.Load().Redis
	cfg.URL = "http://not-redis"

	_, err := NewRedisClient(context.Background(), *cfg)
	require.ErrorContains(t, err, "parse redis url")
}

func TestApplyOverridesKeepsURLValuesForZeroFields(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/2?pool_size=7&dial_timeout=3s")
	require.NoError(t, err)

	applyOverrides(opts, config.RedisConfig{ReadTimeout: time.Second, MinIdleConns: 4})

	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, 3*time.Second, opts.DialTimeout)
	require.Equal(t, time.Second, opts.ReadTimeout)
	require.Equal(t, 4, opts.MinIdleConns)
	require.Equal(t, 2, opts.DB)
}
