package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
)

type FamilyRepository struct {
	client    *redis.Client
	keyPrefix string
}

func NewFamilyRepository(client *redis.Client, keyPrefix string) *FamilyRepository {
	return &FamilyRepository{client: client, keyPrefix: keyPrefix}
}

func (r *FamilyRepository) familyKey(id string) string {
	return r.keyPrefix + familyKeyNS + id
}

func (r *FamilyRepository) SaveFamily(ctx context.Context, family *models.TokenFamily, ttl time.Duration) error {
	payload, err := json.Marshal(family)
	if err != nil {
		return fmt.Errorf("marshal token family: %w", err)
	}
	if err := r.client.Set(ctx, r.familyKey(family.FamilyID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: save token family: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *FamilyRepository) GetFamily(ctx context.Context, familyID string) (*models.TokenFamily, error) {
	raw, err := r.client.Get(ctx, r.familyKey(familyID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrFamilyNotFound
		}
		return nil, fmt.Errorf("%w: get token family: %v", storage.ErrStoreUnavailable, err)
	}

	var family models.TokenFamily
	if err := json.Unmarshal(raw, &family); err != nil {
		return nil, fmt.Errorf("unmarshal token family: %w", err)
	}
	return &family, nil
}
