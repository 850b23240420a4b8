package postgres

import (
	"context"
	"fmt"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
)

// AuditArchive is the durable relational copy of audit events, kept beyond
// the redis retention window for forensics. Insert-only.
type AuditArchive struct {
	db storage.DBTX
}

func NewAuditArchive(db storage.DBTX) *AuditArchive {
	return &AuditArchive{db: db}
}

func (a *AuditArchive) Append(ctx context.Context, event models.AuditEvent) error {
	query := `INSERT INTO audit_events (event_type, session_id, user_id, family_id, reason, client_ip, user_agent, occurred_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := a.db.ExecContext(
		ctx,
		query,
		event.Type,
		event.SessionID,
		event.UserID,
		event.FamilyID,
		event.Reason,
		event.IPAddress,
		event.UserAgent,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
