package models

import "time"

// Audit event types emitted by the session lifecycle.
const (
	AuditSessionCreated     = "session_created"
	AuditSessionRefreshed   = "session_refreshed"
	AuditSessionInvalidated = "session_invalidated"
	AuditBreachDetected     = "breach_detected"
	AuditUserRevoked        = "user_sessions_revoked"
)

// AuditEvent is one append-only record in the time-bucketed session audit log.
type AuditEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	FamilyID  string    `json:"family_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	At        time.Time `json:"at"`
}
