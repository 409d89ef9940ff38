package redis

import (
	"context"
	"orderpulse/internal/core/domain"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisPresenceStore struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
		now: time.Now,
	}
}

func presenceKey(role domain.Role) string {
	return "presence:role:" + string(role)
}

// MarkOnline adds/updates a user in the role's ZSet with the current timestamp.
func (p *RedisPresenceStore) MarkOnline(
	ctx context.Context,
	role domain.Role,
	userID string,
	ttl time.Duration, // "inactivity threshold"
) error {
	key := presenceKey(role)
	pipe := p.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(p.now().Unix()),
		Member: userID,
	})
	// Set an expiration on the whole ZSet so it doesn't leak memory
	// if nobody of this role is connected anymore.
	pipe.Expire(ctx, key, ttl*2)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresenceStore) MarkOffline(ctx context.Context, role domain.Role, userID string) error {
	return p.rdb.ZRem(ctx, presenceKey(role), userID).Err()
}

// Online returns users who have checked in within window.
func (p *RedisPresenceStore) Online(
	ctx context.Context,
	role domain.Role,
	window time.Duration,
) ([]string, error) {
	key := presenceKey(role)
	threshold := p.now().Add(-window).Unix()

	// Remove stale members first (Self-cleaning)
	if err := p.rdb.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(threshold, 10)).Err(); err != nil {
		return nil, err
	}
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}
