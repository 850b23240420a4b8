package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
)

type familyEntry struct {
	family    models.TokenFamily
	expiresAt time.Time
}

type InMemoryFamilyRepository struct {
	mu       sync.RWMutex
	families map[string]familyEntry
	now      func() time.Time
}

func NewFamilyRepository() *InMemoryFamilyRepository {
	return &InMemoryFamilyRepository{
		families: make(map[string]familyEntry),
		now:      time.Now,
	}
}

func (m *InMemoryFamilyRepository) SaveFamily(_ context.Context, family *models.TokenFamily, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.families[family.FamilyID] = familyEntry{family: *family, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *InMemoryFamilyRepository) GetFamily(_ context.Context, familyID string) (*models.TokenFamily, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.families[familyID]
	if !ok {
		return nil, storage.ErrFamilyNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.families, familyID)
		return nil, storage.ErrFamilyNotFound
	}

	family := entry.family
	family.UsedTokens = append([]string(nil), entry.family.UsedTokens...)
	return &family, nil
}
