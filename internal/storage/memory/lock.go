package memory

import (
	"context"
	"sync"
	"time"
)

type lockEntry struct {
	owner     string
	expiresAt time.Time
}

type InMemoryLock struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

func NewLock() *InMemoryLock {
	return &InMemoryLock{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

func (l *InMemoryLock) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if ok && entry.expiresAt.After(l.now()) {
		return false, nil
	}

	l.locks[key] = lockEntry{owner: owner, expiresAt: l.now().Add(ttl)}
	return true, nil
}

func (l *InMemoryLock) Release(_ context.Context, key, owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if ok && entry.owner == owner {
		delete(l.locks, key)
	}
	return nil
}
