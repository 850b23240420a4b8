package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
)

type SessionRepository struct {
	client     *redis.Client
	keyPrefix  string
	sessionTTL time.Duration
	now        func() time.Time
}

func NewSessionRepository(client *redis.Client, keyPrefix string, sessionTTL time.Duration) *SessionRepository {
	return &SessionRepository{
		client:     client,
		keyPrefix:  keyPrefix,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (r *SessionRepository) sessionKey(id string) string {
	return r.keyPrefix + sessionKeyNS + id
}

func (r *SessionRepository) userKey(userID string) string {
	return r.keyPrefix + userSessionsKeyNS + userID
}

func (r *SessionRepository) CreateSession(ctx context.Context, session models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(session.ID), payload, ttl)
		pipe.SAdd(ctx, r.userKey(session.UserID), session.ID)
		pipe.Expire(ctx, r.userKey(session.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: create session: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Sliding expiry: only live sessions get their activity and TTL renewed;
	// invalidated records keep their short retention window.
	if session.Status == models.SessionActive {
		session.LastActivity = r.now().UTC()
		if err := r.SaveSession(ctx, session, r.sessionTTL); err != nil {
			return nil, err
		}
	}

	return session, nil
}

func (r *SessionRepository) SaveSession(ctx context.Context, session *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(session.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session: %v", storage.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *SessionRepository) InvalidateSession(ctx context.Context, sessionID, reason string, retention time.Duration) (*models.Session, bool, error) {
	session, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	if session.Status != models.SessionActive {
		return session, false, nil
	}

	now := r.now().UTC()
	session.Status = models.SessionInvalidated
	session.InvalidatedAt = &now
	session.InvalidationReason = reason
	if reason == models.ReasonTokenReuseDetected {
		session.Status = models.SessionSuspicious
	}

	if err := r.SaveSession(ctx, session, retention); err != nil {
		return nil, false, err
	}
	if err := r.client.SRem(ctx, r.userKey(session.UserID), sessionID).Err(); err != nil {
		return nil, false, fmt.Errorf("%w: unindex session: %v", storage.ErrStoreUnavailable, err)
	}

	return session, true, nil
}

func (r *SessionRepository) RevokeAllUserSessions(ctx context.Context, userID, reason string, retention time.Duration) ([]models.Session, error) {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list user sessions: %v", storage.ErrStoreUnavailable, err)
	}

	var revoked []models.Session
	for _, id := range ids {
		session, changed, err := r.InvalidateSession(ctx, id, reason, retention)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				continue
			}
			return revoked, err
		}
		if changed {
			revoked = append(revoked, *session)
		}
	}

	if err := r.client.Del(ctx, r.userKey(userID)).Err(); err != nil {
		return revoked, fmt.Errorf("%w: drop user session index: %v", storage.ErrStoreUnavailable, err)
	}
	return revoked, nil
}

func (r *SessionRepository) load(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: get session: %v", storage.ErrStoreUnavailable, err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
