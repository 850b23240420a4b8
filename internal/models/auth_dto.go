package models

const (
	MwSchemeBearerAuth = "BearerAuth"

	MwClaimsKey  = "claims"
	MwTokenKey   = "token"
	MwUserIDKey  = "userID"
	MwSessionKey = "sessionID"
)

type CreateSessionRequest struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
	// Password and PasswordHash are optional: when either is present the
	// pair is verified before a session is issued.
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	AAL          string `json:"authentication_assurance_level,omitempty"`
}

type TokenPairResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
	SessionID        string `json:"session_id,omitempty"`
}

type TokenRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RevokeAllRequest struct {
	UserID string `json:"user_id"`
}
