package models

import "time"

type FamilyStatus string

const (
	FamilyValid    FamilyStatus = "valid"
	FamilyBreached FamilyStatus = "breached"
	FamilyExpired  FamilyStatus = "expired"
)

// TokenFamily is the rotation lineage of refresh tokens issued from one
// login. Exactly one token id is current at any moment; previously valid
// ids are retained (bounded) so a replay can be told apart from a benign
// retry of the still-current token.
type TokenFamily struct {
	FamilyID       string       `json:"family_id"`
	SessionID      string       `json:"session_id"`
	UserID         string       `json:"user_id"`
	Generation     int64        `json:"generation"`
	CurrentTokenID string       `json:"current_token_id"`
	// CurrentToken is the signed refresh token matching CurrentTokenID.
	// Retained so a benign concurrent retry can be answered with the real
	// current token instead of minting a divergent one.
	CurrentToken string       `json:"current_token,omitempty"`
	UsedTokens   []string     `json:"used_tokens,omitempty"`
	Status       FamilyStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	LastRotation time.Time    `json:"last_rotation"`
}

// WasUsed reports whether tokenID appears in the retained rotation history.
func (f *TokenFamily) WasUsed(tokenID string) bool {
	for _, id := range f.UsedTokens {
		if id == tokenID {
			return true
		}
	}
	return false
}
