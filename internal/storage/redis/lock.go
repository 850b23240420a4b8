package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/sessionguard/internal/storage"
)

// releaseScript deletes the lock key only while it still holds the caller's
// owner token, so a lock taken over after expiry is never released by the
// previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Lock struct {
	client    *redis.Client
	keyPrefix string
}

func NewLock(client *redis.Client, keyPrefix string) *Lock {
	return &Lock{client: client, keyPrefix: keyPrefix}
}

func (l *Lock) lockKey(key string) string {
	return l.keyPrefix + lockKeyNS + key
}

func (l *Lock) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.lockKey(key), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: acquire lock: %v", storage.ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (l *Lock) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.lockKey(key)}, owner).Err(); err != nil {
		return fmt.Errorf("%w: release lock: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}
