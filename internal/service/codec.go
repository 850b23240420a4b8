package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/util"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the signed claim set carried by both token kinds. Access tokens
// carry roles and email so downstream services can authorize statelessly;
// refresh tokens carry the family id driving rotation.
type Claims struct {
	TokenType string   `json:"typ"`
	SessionID string   `json:"sid"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	FamilyID  string   `json:"fid,omitempty"`
	Binding   string   `json:"bnd,omitempty"`
	jwt.RegisteredClaims
}

// TokenCodec encodes and decodes signed, expiring claim sets. Pure function
// of the key and its input; holds no state.
type TokenCodec struct {
	jwtSecretKey []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewTokenCodec(cfg *util.TokenConfig) *TokenCodec {
	return &TokenCodec{
		jwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
	}
}

func (c *TokenCodec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// EncodeAccess signs an HS512 access token for the session. Returns the
// token, its jti and its expiry.
func (c *TokenCodec) EncodeAccess(session *models.Session, now time.Time) (string, string, time.Time, error) {
	jti := uuid.NewString()
	exp := now.Add(c.accessTTL)

	claims := &Claims{
		TokenType: TokenTypeAccess,
		SessionID: session.ID,
		Email:     session.UserEmail,
		Roles:     session.Roles,
		Binding:   bindingClaim(session.BindingSecret),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := c.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, exp, nil
}

// EncodeRefresh signs an HS512 refresh token bound to the rotation family.
func (c *TokenCodec) EncodeRefresh(session *models.Session, familyID string, now time.Time) (string, string, time.Time, error) {
	jti := uuid.NewString()
	exp := now.Add(c.refreshTTL)

	claims := &Claims{
		TokenType: TokenTypeRefresh,
		SessionID: session.ID,
		FamilyID:  familyID,
		Binding:   bindingClaim(session.BindingSecret),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := c.sign(claims)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, jti, exp, nil
}

// Decode verifies the signature, pinned algorithm and expiry, and returns
// the claims. Signature and structural failures map to ErrTokenInvalid;
// a valid signature past exp maps to ErrTokenExpired.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithLeeway(util.JWTLeeWay),
		jwt.WithExpirationRequired(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		token,
		&Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return c.jwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if parsedToken == nil || !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (c *TokenCodec) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(c.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}
	return signed, nil
}

// bindingClaim derives the device-binding claim from the session's binding
// secret. The secret itself never appears in a token.
func bindingClaim(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
