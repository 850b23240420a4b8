package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
)

// AuditLog appends session lifecycle events to day-bucketed lists, each
// bucket expiring after the configured retention.
type AuditLog struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
}

func NewAuditLog(client *redis.Client, keyPrefix string, retentionDays int) *AuditLog {
	return &AuditLog{
		client:    client,
		keyPrefix: keyPrefix,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func (a *AuditLog) bucketKey(at time.Time) string {
	return a.keyPrefix + auditKeyNS + at.UTC().Format(auditDayLayout)
}

func (a *AuditLog) Append(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	key := a.bucketKey(event.At)
	_, err = a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.Expire(ctx, key, a.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: append audit event: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}
