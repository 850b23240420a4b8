package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rryowa/sessionguard/internal/models"
)

const auditDayLayout = "20060102"

// InMemoryAuditLog keeps day-bucketed audit events in process memory. Useful
// both for degraded mode and for asserting side effects in tests.
type InMemoryAuditLog struct {
	mu      sync.RWMutex
	buckets map[string][]models.AuditEvent
}

func NewAuditLog() *InMemoryAuditLog {
	return &InMemoryAuditLog{
		buckets: make(map[string][]models.AuditEvent),
	}
}

func (a *InMemoryAuditLog) Append(_ context.Context, event models.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := event.At.UTC().Format(auditDayLayout)
	a.buckets[key] = append(a.buckets[key], event)
	return nil
}

// Events returns the bucket for the given day, most recent last.
func (a *InMemoryAuditLog) Events(day time.Time) []models.AuditEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()

	bucket := a.buckets[day.UTC().Format(auditDayLayout)]
	out := make([]models.AuditEvent, len(bucket))
	copy(out, bucket)
	return out
}
