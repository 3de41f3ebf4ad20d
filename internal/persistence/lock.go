package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another sweep is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker hands out short-lived exclusive locks backed by SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker builds a locker on the given client.
func NewRedisLocker(r *Redis) *RedisLocker {
	if r == nil || r.Client == nil {
		return nil
	}
	return &RedisLocker{client: r.Client}
}

// TryLock attempts to take key for ttl. ok is false when someone else holds it.
// The returned release func is always non-nil and safe to call once.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error) {
	noop := func() {}
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return noop, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return noop, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, true, nil
}
