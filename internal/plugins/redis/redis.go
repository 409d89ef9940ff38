package redis

import (
	"context"
	"fmt"
	"orderpulse/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to cfg.URL and pings it once. Non-zero timeouts
// and pool sizes in cfg win over those carried in the URL query.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	applyOverrides(opts, cfg)

	rdb := redis.NewClient(opts)
	if err := ping(ctx, rdb, cfg); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func applyOverrides(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
}

func ping(ctx context.Context, rdb *redis.Client, cfg config.RedisConfig) error {
	if cfg.PingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.PingTimeout)
		defer cancel()
	}
	return rdb.Ping(ctx).Err()
}
