package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
	"github.com/rryowa/sessionguard/internal/util"
)

// TokenPair is what callers get back from CreateSession and Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// SessionService is the only surface exposed to callers. It composes the
// codec, the family manager and the stores into the login, refresh, logout
// and revoke-everywhere flows.
type SessionService struct {
	codec     *TokenCodec
	families  *TokenFamilyManager
	sessions  storage.SessionRepository
	blacklist storage.Blacklist
	audit     storage.AuditSink
	log       *zap.SugaredLogger
	cfg       *util.SessionConfig
	now       func() time.Time
}

// NewSessionService validates the configured invariants before wiring
// anything; a violated invariant means no session can ever be created.
func NewSessionService(
	codec *TokenCodec,
	families *TokenFamilyManager,
	sessions storage.SessionRepository,
	blacklist storage.Blacklist,
	audit storage.AuditSink,
	log *zap.SugaredLogger,
	tc *util.TokenConfig,
	sc *util.SessionConfig,
) (*SessionService, error) {
	if err := util.ValidateConfigs(tc, sc); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	return &SessionService{
		codec:     codec,
		families:  families,
		sessions:  sessions,
		blacklist: blacklist,
		audit:     audit,
		log:       log,
		cfg:       sc,
		now:       time.Now,
	}, nil
}

// CreateSession establishes a session record, a fresh token family and the
// first access/refresh pair. The session record is written only after every
// token exists, so callers never observe a partially initialized session.
func (s *SessionService) CreateSession(ctx context.Context, userID, email string, roles []string, meta models.SessionMetadata) (*TokenPair, error) {
	if userID == "" {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()

	sessionID, err := randomToken(s.cfg.SessionIDBytes)
	if err != nil {
		return nil, err
	}
	bindingSecret, err := randomToken(s.cfg.BindingSecretBytes)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:            sessionID,
		UserID:        userID,
		UserEmail:     email,
		Roles:         roles,
		Status:        models.SessionActive,
		CreatedAt:     now,
		LastActivity:  now,
		BindingSecret: bindingSecret,
		Metadata:      meta,
	}

	familyID, err := s.families.Create(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshJTI, refreshExp, err := s.codec.EncodeRefresh(session, familyID, now)
	if err != nil {
		return nil, err
	}
	accessToken, accessJTI, accessExp, err := s.codec.EncodeAccess(session, now)
	if err != nil {
		return nil, err
	}

	session.CurrentAccessJTI = accessJTI
	session.AccessExpiresAt = &accessExp

	if err := s.sessions.CreateSession(ctx, *session, s.cfg.SessionTTL); err != nil {
		return nil, err
	}
	if err := s.families.Seed(ctx, familyID, refreshJTI, refreshToken); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, models.AuditEvent{
		Type:      models.AuditSessionCreated,
		SessionID: sessionID,
		UserID:    userID,
		FamilyID:  familyID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		At:        now,
	})

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

// Refresh validates and rotates the refresh token, re-issuing an access
// token from the still-valid session. A benign concurrent retry receives the
// token the winning rotation installed rather than a newly derived one.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh || claims.FamilyID == "" {
		return nil, ErrTokenInvalid
	}

	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	family, err := s.families.Get(ctx, claims.FamilyID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, family.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, storage.ErrSessionNotFound
	}

	now := s.now().UTC()

	newRefresh, newRefreshJTI, newRefreshExp, err := s.codec.EncodeRefresh(session, family.FamilyID, now)
	if err != nil {
		return nil, err
	}

	outcome, err := s.families.Rotate(ctx, family.FamilyID, claims.ID, newRefreshJTI, newRefresh)
	if err != nil {
		return nil, err
	}

	if !outcome.Rotated {
		// Lost a benign race; hand back the winner's refresh token.
		newRefresh = outcome.CurrentToken
		currentClaims, err := s.codec.Decode(outcome.CurrentToken)
		if err != nil {
			return nil, err
		}
		newRefreshExp = currentClaims.ExpiresAt.Time
	}

	accessToken, accessJTI, accessExp, err := s.codec.EncodeAccess(session, now)
	if err != nil {
		return nil, err
	}

	// A benign-race loser must not displace the access jti the winner
	// recorded, or the winner's token would escape blacklisting at logout.
	if outcome.Rotated {
		session.CurrentAccessJTI = accessJTI
		session.AccessExpiresAt = &accessExp
		if err := s.sessions.SaveSession(ctx, session, s.cfg.SessionTTL); err != nil {
			return nil, err
		}
	}

	s.appendAudit(ctx, models.AuditEvent{
		Type:      models.AuditSessionRefreshed,
		SessionID: session.ID,
		UserID:    session.UserID,
		FamilyID:  family.FamilyID,
		At:        now,
	})

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     newRefresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: newRefreshExp,
		SessionID:        session.ID,
	}, nil
}

// Invalidate marks the session dead and blacklists its current access token.
// Idempotent: a second call on an already-invalid session succeeds without
// touching the original invalidation record.
func (s *SessionService) Invalidate(ctx context.Context, sessionID, reason string) error {
	session, changed, err := s.sessions.InvalidateSession(ctx, sessionID, reason, s.cfg.InvalidatedRetention)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := s.blacklistAccessToken(ctx, session); err != nil {
		return err
	}

	s.appendAudit(ctx, models.AuditEvent{
		Type:      models.AuditSessionInvalidated,
		SessionID: session.ID,
		UserID:    session.UserID,
		Reason:    reason,
		At:        s.now().UTC(),
	})
	return nil
}

// RevokeAllForUser invalidates every live session of the user. Used by
// password-change and account-lock flows.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) error {
	revoked, err := s.sessions.RevokeAllUserSessions(ctx, userID, models.ReasonRevokedForUser, s.cfg.InvalidatedRetention)
	if err != nil {
		return err
	}

	for i := range revoked {
		if err := s.blacklistAccessToken(ctx, &revoked[i]); err != nil {
			s.log.Errorw("failed to blacklist access token during user revocation",
				"sessionID", revoked[i].ID, "error", err)
		}
	}

	s.appendAudit(ctx, models.AuditEvent{
		Type:   models.AuditUserRevoked,
		UserID: userID,
		Reason: models.ReasonRevokedForUser,
		At:     s.now().UTC(),
	})

	s.log.Infow("revoked all sessions for user", "userID", userID, "count", len(revoked))
	return nil
}

// IsRevoked reports whether the token id sits on the revocation list.
func (s *SessionService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.blacklist.Contains(ctx, tokenID)
}

// DecodeAndCheck combines codec decoding with the blacklist check. This is
// what authorization middleware calls on every protected request.
func (s *SessionService) DecodeAndCheck(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

func (s *SessionService) blacklistAccessToken(ctx context.Context, session *models.Session) error {
	if session.CurrentAccessJTI == "" || session.AccessExpiresAt == nil {
		return nil
	}
	return s.blacklist.Add(ctx, session.CurrentAccessJTI, *session.AccessExpiresAt)
}

// appendAudit never fails the caller: the primary operation has already
// taken effect and must not be rolled back over a missing audit record.
func (s *SessionService) appendAudit(ctx context.Context, event models.AuditEvent) {
	if err := s.audit.Append(ctx, event); err != nil {
		s.log.Errorw("failed to append audit event", "type", event.Type, "error", err)
	}
}

func randomToken(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// IsRetryable reports whether the caller should retry with backoff instead
// of surfacing the failure to the end user.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockAcquisitionTimeout) || errors.Is(err, storage.ErrStoreUnavailable)
}
