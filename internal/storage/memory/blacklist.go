package memory

import (
	"context"
	"sync"
	"time"
)

type InMemoryBlacklist struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewBlacklist() *InMemoryBlacklist {
	return &InMemoryBlacklist{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (b *InMemoryBlacklist) Add(_ context.Context, tokenID string, naturalExpiry time.Time) error {
	if !naturalExpiry.After(b.now()) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.revoked[tokenID] = naturalExpiry
	return nil
}

func (b *InMemoryBlacklist) Contains(_ context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, ok := b.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !expiry.After(b.now()) {
		delete(b.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
