package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rryowa/sessionguard/internal/models"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrFamilyNotFound   = errors.New("token family not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// SessionRepository owns session records and their TTL-based expiry.
type SessionRepository interface {
	// CreateSession writes a fresh session record and registers it in the
	// per-user index used by RevokeAllUserSessions.
	CreateSession(ctx context.Context, session models.Session, ttl time.Duration) error

	// GetSession returns the session, refreshing last_activity and re-applying
	// the sliding TTL for active sessions. Missing or expired sessions yield
	// ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// SaveSession overwrites an existing record, re-applying ttl.
	SaveSession(ctx context.Context, session *models.Session, ttl time.Duration) error

	// InvalidateSession marks the session dead and shortens its TTL to the
	// audit-retention window. Idempotent: a second call reports changed=false
	// and leaves the original invalidated_at untouched.
	InvalidateSession(ctx context.Context, sessionID, reason string, retention time.Duration) (session *models.Session, changed bool, err error)

	// RevokeAllUserSessions invalidates every live session of the user and
	// returns the sessions that were actually transitioned.
	RevokeAllUserSessions(ctx context.Context, userID, reason string, retention time.Duration) ([]models.Session, error)
}

// FamilyRepository persists refresh-token rotation lineages.
type FamilyRepository interface {
	SaveFamily(ctx context.Context, family *models.TokenFamily, ttl time.Duration) error
	// GetFamily yields ErrFamilyNotFound for unknown or expired families.
	GetFamily(ctx context.Context, familyID string) (*models.TokenFamily, error)
}

// Blacklist is the token revocation list consulted on every validation.
type Blacklist interface {
	// Add records the token id until its natural expiry. Adding an already
	// expired token is a no-op.
	Add(ctx context.Context, tokenID string, naturalExpiry time.Time) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

// Locker is a short-lived mutual-exclusion primitive on a named resource.
// Acquire is a single attempt; bounded-wait retry belongs to the caller.
type Locker interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	// Release deletes the lock only while it is still held by owner.
	Release(ctx context.Context, key, owner string) error
}

// AuditSink is a write-only destination for session lifecycle events.
type AuditSink interface {
	Append(ctx context.Context, event models.AuditEvent) error
}

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
