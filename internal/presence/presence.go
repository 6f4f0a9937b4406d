package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker records who is reachable right now. Socket registration drives it;
// nothing durable depends on it.
type Tracker interface {
	Online(ctx context.Context, userID string)
	Offline(ctx context.Context, userID string)
	Refresh(ctx context.Context, userID string)
	IsOnline(ctx context.Context, userID string) bool
}

// RedisTracker keeps presence:<user> keys with a TTL so stale entries age
// out if a process dies without cleanup.
type RedisTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, prefix string, ttl time.Duration) *RedisTracker {
	if ttl == 0 {
		ttl = 60 * time.Second
	}
	return &RedisTracker{client: client, prefix: prefix, ttl: ttl}
}

func (t *RedisTracker) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", t.prefix, userID)
}

func (t *RedisTracker) Online(ctx context.Context, userID string) {
	_ = t.client.Set(ctx, t.key(userID), "online", t.ttl).Err()
}

func (t *RedisTracker) Offline(ctx context.Context, userID string) {
	_ = t.client.Del(ctx, t.key(userID)).Err()
}

func (t *RedisTracker) Refresh(ctx context.Context, userID string) {
	_ = t.client.Expire(ctx, t.key(userID), t.ttl).Err()
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID string) bool {
	v, err := t.client.Get(ctx, t.key(userID)).Result()
	return err == nil && v == "online"
}
