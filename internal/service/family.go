package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
	"github.com/rryowa/sessionguard/internal/util"
)

// TokenFamilyManager owns refresh-token rotation and breach detection. A
// family moves valid -> breached on detected replay, or expires with its
// TTL; both transitions are terminal. Rotations of the same family are
// serialized by a distributed lock so concurrent instances cannot corrupt
// the lineage.
type TokenFamilyManager struct {
	families  storage.FamilyRepository
	sessions  storage.SessionRepository
	locker    storage.Locker
	audit     storage.AuditSink
	log       *zap.SugaredLogger
	lockCfg   *util.LockConfig
	familyTTL time.Duration
	retention time.Duration
	reuse     time.Duration
	history   int
	now       func() time.Time
}

func NewTokenFamilyManager(
	families storage.FamilyRepository,
	sessions storage.SessionRepository,
	locker storage.Locker,
	audit storage.AuditSink,
	log *zap.SugaredLogger,
	sc *util.SessionConfig,
	lc *util.LockConfig,
) *TokenFamilyManager {
	return &TokenFamilyManager{
		families:  families,
		sessions:  sessions,
		locker:    locker,
		audit:     audit,
		log:       log,
		lockCfg:   lc,
		familyTTL: sc.FamilyTTL,
		retention: sc.InvalidatedRetention,
		reuse:     sc.ReuseWindow,
		history:   sc.UsedTokenHistory,
		now:       time.Now,
	}
}

// RotationOutcome reports what a Rotate call did. Rotated=false means the
// call hit the benign-race path: the family was left untouched and
// CurrentToken is the token the concurrent winner installed.
type RotationOutcome struct {
	Rotated        bool
	CurrentToken   string
	CurrentTokenID string
	Generation     int64
}

// Create initializes a family for the session with generation 0 and no
// current token.
func (m *TokenFamilyManager) Create(ctx context.Context, userID, sessionID string) (string, error) {
	now := m.now().UTC()
	family := &models.TokenFamily{
		FamilyID:     uuid.NewString(),
		SessionID:    sessionID,
		UserID:       userID,
		Status:       models.FamilyValid,
		CreatedAt:    now,
		LastRotation: now,
	}

	if err := m.families.SaveFamily(ctx, family, m.familyTTL); err != nil {
		return "", err
	}
	return family.FamilyID, nil
}

// Seed records the very first token id as current. Called once, right after
// Create.
func (m *TokenFamilyManager) Seed(ctx context.Context, familyID, tokenID, signedToken string) error {
	family, err := m.families.GetFamily(ctx, familyID)
	if err != nil {
		return err
	}
	if family.CurrentTokenID != "" {
		return errors.New("token family already seeded")
	}

	family.CurrentTokenID = tokenID
	family.CurrentToken = signedToken
	return m.families.SaveFamily(ctx, family, m.familyTTL)
}

// Get returns the family; unknown ids map to ErrTokenInvalid since the only
// way a caller holds a family id is inside a token.
func (m *TokenFamilyManager) Get(ctx context.Context, familyID string) (*models.TokenFamily, error) {
	family, err := m.families.GetFamily(ctx, familyID)
	if err != nil {
		if errors.Is(err, storage.ErrFamilyNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return family, nil
}

// Rotate is the central refresh operation: under the family lock it replaces
// the current token id with newTokenID, or detects replay. A replay of a
// retired token inside the reuse window is treated as a benign race between
// near-simultaneous refresh calls; outside the window it is a breach, which
// kills the family and the owning session.
func (m *TokenFamilyManager) Rotate(ctx context.Context, familyID, oldTokenID, newTokenID, newSignedToken string) (*RotationOutcome, error) {
	owner, err := m.acquireLock(ctx, familyID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := m.locker.Release(context.WithoutCancel(ctx), familyID, owner); err != nil {
			m.log.Errorw("failed to release rotation lock", "familyID", familyID, "error", err)
		}
	}()

	family, err := m.families.GetFamily(ctx, familyID)
	if err != nil {
		if errors.Is(err, storage.ErrFamilyNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if family.Status != models.FamilyValid {
		// An earlier breach may have hit a store failure before the session
		// was invalidated; converge the side effects before refusing.
		if err := m.invalidateBreachedSession(ctx, family); err != nil {
			return nil, err
		}
		return nil, ErrTokenReused
	}

	now := m.now().UTC()

	switch {
	case oldTokenID == family.CurrentTokenID:
		family.UsedTokens = append(family.UsedTokens, family.CurrentTokenID)
		if len(family.UsedTokens) > m.history {
			family.UsedTokens = family.UsedTokens[len(family.UsedTokens)-m.history:]
		}
		family.CurrentTokenID = newTokenID
		family.CurrentToken = newSignedToken
		family.Generation++
		family.LastRotation = now

		if err := m.families.SaveFamily(ctx, family, m.familyTTL); err != nil {
			return nil, err
		}
		return &RotationOutcome{
			Rotated:        true,
			CurrentToken:   newSignedToken,
			CurrentTokenID: newTokenID,
			Generation:     family.Generation,
		}, nil

	case family.WasUsed(oldTokenID):
		if now.Sub(family.LastRotation) < m.reuse {
			// Two refresh calls read the family before either write landed.
			// The loser keeps the winner's token; no state changes.
			return &RotationOutcome{
				Rotated:        false,
				CurrentToken:   family.CurrentToken,
				CurrentTokenID: family.CurrentTokenID,
				Generation:     family.Generation,
			}, nil
		}

		if err := m.markBreached(ctx, family); err != nil {
			return nil, err
		}
		return nil, ErrTokenReused

	default:
		return nil, ErrTokenInvalid
	}
}

// Validate is the read-only variant of Rotate's checks, exposed for
// diagnostics. It never mutates the family, even on a would-be breach.
func (m *TokenFamilyManager) Validate(ctx context.Context, familyID, tokenID string) (*models.TokenFamily, error) {
	family, err := m.Get(ctx, familyID)
	if err != nil {
		return nil, err
	}

	if family.Status != models.FamilyValid {
		return nil, ErrTokenReused
	}

	switch {
	case tokenID == family.CurrentTokenID:
		return family, nil
	case family.WasUsed(tokenID):
		if m.now().UTC().Sub(family.LastRotation) < m.reuse {
			return family, nil
		}
		return nil, ErrTokenReused
	default:
		return nil, ErrTokenInvalid
	}
}

// markBreached persists the terminal breached state, then invalidates the
// owning session, then audits. A store failure after the family save is
// propagated so the caller sees a retryable error; the retry converges via
// the status check in Rotate.
func (m *TokenFamilyManager) markBreached(ctx context.Context, family *models.TokenFamily) error {
	family.Status = models.FamilyBreached
	if err := m.families.SaveFamily(ctx, family, m.retention); err != nil {
		return err
	}

	m.log.Warnw("refresh token reuse detected, family breached",
		"familyID", family.FamilyID, "sessionID", family.SessionID, "userID", family.UserID)

	return m.invalidateBreachedSession(ctx, family)
}

// invalidateBreachedSession kills the session owning a breached family and
// appends the breach audit record the first time the session actually
// transitions. Idempotent, so both the breach path and later refusals of an
// already-breached family can call it.
func (m *TokenFamilyManager) invalidateBreachedSession(ctx context.Context, family *models.TokenFamily) error {
	_, changed, err := m.sessions.InvalidateSession(ctx, family.SessionID, models.ReasonTokenReuseDetected, m.retention)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("invalidate breached session: %w", err)
	}
	if !changed {
		return nil
	}

	if err := m.audit.Append(ctx, models.AuditEvent{
		Type:      models.AuditBreachDetected,
		SessionID: family.SessionID,
		UserID:    family.UserID,
		FamilyID:  family.FamilyID,
		Reason:    models.ReasonTokenReuseDetected,
		At:        m.now().UTC(),
	}); err != nil {
		m.log.Errorw("failed to append breach audit event", "familyID", family.FamilyID, "error", err)
	}
	return nil
}

func (m *TokenFamilyManager) acquireLock(ctx context.Context, familyID string) (string, error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(m.lockCfg.Wait)

	for {
		ok, err := m.locker.Acquire(ctx, familyID, owner, m.lockCfg.TTL)
		if err != nil {
			return "", err
		}
		if ok {
			return owner, nil
		}
		if time.Now().After(deadline) {
			return "", ErrLockAcquisitionTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.lockCfg.RetryInterval):
		}
	}
}
