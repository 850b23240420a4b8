package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/sessionguard/internal/storage"
)

type Blacklist struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

func NewBlacklist(client *redis.Client, keyPrefix string) *Blacklist {
	return &Blacklist{client: client, keyPrefix: keyPrefix, now: time.Now}
}

func (b *Blacklist) blacklistKey(tokenID string) string {
	return b.keyPrefix + blacklistKeyNS + tokenID
}

// Add stores the token id until its natural expiry. A token that would have
// expired anyway needs no entry.
func (b *Blacklist) Add(ctx context.Context, tokenID string, naturalExpiry time.Time) error {
	ttl := naturalExpiry.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.blacklistKey(tokenID), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%w: blacklist token: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

func (b *Blacklist) Contains(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: check blacklist: %v", storage.ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
