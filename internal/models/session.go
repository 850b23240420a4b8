package models

import "time"

type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionInvalidated SessionStatus = "invalidated"
	SessionSuspicious  SessionStatus = "suspicious"
)

// Invalidation reasons recorded on the session and in the audit trail.
const (
	ReasonLogout             = "logout"
	ReasonTokenReuseDetected = "token_reuse_detected"
	ReasonRevokedForUser     = "revoked_all_for_user"
)

// SessionMetadata is free-form client context captured at login.
type SessionMetadata struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	AAL       string `json:"authentication_assurance_level,omitempty"`
}

// Session is the server-side record of one authenticated login. It outlives
// any single token pair and is the source of truth for "still logged in".
type Session struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	UserEmail          string          `json:"user_email"`
	Roles              []string        `json:"roles"`
	Status             SessionStatus   `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	LastActivity       time.Time       `json:"last_activity"`
	InvalidatedAt      *time.Time      `json:"invalidated_at,omitempty"`
	InvalidationReason string          `json:"invalidation_reason,omitempty"`
	BindingSecret      string          `json:"binding_secret,omitempty"`
	// CurrentAccessJTI tracks the most recently issued access token so that
	// logout can blacklist it without the caller resending it.
	CurrentAccessJTI string          `json:"current_access_jti,omitempty"`
	AccessExpiresAt  *time.Time      `json:"access_expires_at,omitempty"`
	Metadata         SessionMetadata `json:"metadata"`
}
