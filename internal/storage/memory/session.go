package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
)

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
}

// InMemorySessionRepository is the single-process fallback used when the
// shared store is unreachable. Records are lost on restart and invisible to
// other instances; the process must have logged that loudly at startup.
type InMemorySessionRepository struct {
	mu         sync.RWMutex
	sessions   map[string]sessionEntry
	byUser     map[string]map[string]struct{}
	sessionTTL time.Duration
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewSessionRepository(log *zap.SugaredLogger, sessionTTL time.Duration) *InMemorySessionRepository {
	return &InMemorySessionRepository{
		sessions:   make(map[string]sessionEntry),
		byUser:     make(map[string]map[string]struct{}),
		sessionTTL: sessionTTL,
		log:        log,
		now:        time.Now,
	}
}

func (m *InMemorySessionRepository) CreateSession(_ context.Context, session models.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = sessionEntry{session: session, expiresAt: m.now().Add(ttl)}
	if m.byUser[session.UserID] == nil {
		m.byUser[session.UserID] = make(map[string]struct{})
	}
	m.byUser[session.UserID][session.ID] = struct{}{}
	m.log.Debugw("Session created", "sessionID", session.ID, "userID", session.UserID, "ttl", ttl)

	return nil
}

func (m *InMemorySessionRepository) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.liveEntry(sessionID)
	if err != nil {
		return nil, err
	}

	if entry.session.Status == models.SessionActive {
		entry.session.LastActivity = m.now().UTC()
		entry.expiresAt = m.now().Add(m.sessionTTL)
		m.sessions[sessionID] = entry
	}

	session := entry.session
	return &session, nil
}

func (m *InMemorySessionRepository) SaveSession(_ context.Context, session *models.Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = sessionEntry{session: *session, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *InMemorySessionRepository) InvalidateSession(_ context.Context, sessionID, reason string, retention time.Duration) (*models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.invalidateLocked(sessionID, reason, retention)
}

func (m *InMemorySessionRepository) RevokeAllUserSessions(_ context.Context, userID, reason string, retention time.Duration) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var revoked []models.Session
	for id := range m.byUser[userID] {
		session, changed, err := m.invalidateLocked(id, reason, retention)
		if err != nil {
			continue
		}
		if changed {
			revoked = append(revoked, *session)
		}
	}
	delete(m.byUser, userID)

	return revoked, nil
}

func (m *InMemorySessionRepository) invalidateLocked(sessionID, reason string, retention time.Duration) (*models.Session, bool, error) {
	entry, err := m.liveEntry(sessionID)
	if err != nil {
		return nil, false, err
	}

	if entry.session.Status != models.SessionActive {
		session := entry.session
		return &session, false, nil
	}

	now := m.now().UTC()
	entry.session.Status = models.SessionInvalidated
	if reason == models.ReasonTokenReuseDetected {
		entry.session.Status = models.SessionSuspicious
	}
	entry.session.InvalidatedAt = &now
	entry.session.InvalidationReason = reason
	entry.expiresAt = m.now().Add(retention)
	m.sessions[sessionID] = entry

	if ids := m.byUser[entry.session.UserID]; ids != nil {
		delete(ids, sessionID)
	}

	session := entry.session
	return &session, true, nil
}

// liveEntry requires m.mu to be held.
func (m *InMemorySessionRepository) liveEntry(sessionID string) (sessionEntry, error) {
	entry, ok := m.sessions[sessionID]
	if !ok {
		return sessionEntry{}, storage.ErrSessionNotFound
	}
	if m.now().After(entry.expiresAt) {
		delete(m.sessions, sessionID)
		return sessionEntry{}, storage.ErrSessionNotFound
	}
	return entry, nil
}
