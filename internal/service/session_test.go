package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/storage"
	"github.com/rryowa/sessionguard/internal/util"
)

func TestSessionService_TTLInvariantFailsFast(t *testing.T) {
	t.Parallel()

	tokenCfg := &util.TokenConfig{
		JwtSecretKey: []byte("test-secret"),
		AccessTTL:    24 * time.Hour,
		RefreshTTL:   15 * time.Minute, // inverted on purpose
	}
	sessionCfg := &util.SessionConfig{
		FamilyTTL:            25 * time.Hour,
		SessionTTL:           25 * time.Hour,
		SessionIDBytes:       32,
		BindingSecretBytes:   32,
		ReuseWindow:          10 * time.Second,
		UsedTokenHistory:     20,
		InvalidatedRetention: time.Hour,
	}

	log := zap.NewNop().Sugar()
	codec := NewTokenCodec(tokenCfg)
	_, err := NewSessionService(codec, nil, nil, nil, nil, log, tokenCfg, sessionCfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access TTL")
}

func TestSessionService_CreateSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.SessionID)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	session, err := env.sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, session.Status)
	assert.Equal(t, "42", session.UserID)
	assert.Equal(t, "a@b.com", session.UserEmail)
	assert.Equal(t, []string{"member"}, session.Roles)
	assert.NotEmpty(t, session.BindingSecret)
	assert.Equal(t, "203.0.113.7", session.Metadata.IPAddress)

	events := env.audit.Events(env.clock.Now())
	require.NotEmpty(t, events)
	assert.Equal(t, models.AuditSessionCreated, events[0].Type)
}

func TestSessionService_CreateSessionRequiresUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.CreateSession(context.Background(), "", "a@b.com", nil, models.SessionMetadata{})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

// End-to-end rotation scenario: refresh rotates, replay of the retired token
// outside the grace window breaches, the rotated-to token keeps working
// until then.
func TestSessionService_EndToEnd(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	second, err := env.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	env.clock.Advance(11 * time.Second)

	_, err = env.svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrTokenReused)

	session, err := env.sessions.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.NotEqual(t, models.SessionActive, session.Status)
	assert.Equal(t, models.ReasonTokenReuseDetected, session.InvalidationReason)

	// The breach killed the whole lineage; the second pair is dead too.
	_, err = env.svc.Refresh(ctx, second.RefreshToken)
	require.Error(t, err)
}

func TestSessionService_RefreshChain(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		env.clock.Advance(time.Minute)
		next, err := env.svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
		pair = next
	}
}

// Two refresh calls with the same current token inside the reuse window both
// succeed, and the family generation advances exactly once.
func TestSessionService_RaceTolerance(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	claims, err := env.codec.Decode(pair.RefreshToken)
	require.NoError(t, err)

	winner, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	env.clock.Advance(time.Second)

	loser, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// The loser receives the token the winner installed, not a third lineage.
	assert.Equal(t, winner.RefreshToken, loser.RefreshToken)

	family, err := env.families.GetFamily(ctx, claims.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), family.Generation)
	assert.Equal(t, models.FamilyValid, family.Status)
}

// The winner of a benign refresh race keeps its access token registered on
// the session, so logout still blacklists it even after the loser's call.
func TestSessionService_InvalidateAfterRaceBlacklistsWinnersToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	winner, err := env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	env.clock.Advance(time.Second)

	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	winnerClaims, err := env.codec.Decode(winner.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.svc.Invalidate(ctx, pair.SessionID, models.ReasonLogout))

	revoked, err := env.svc.IsRevoked(ctx, winnerClaims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = env.svc.DecodeAndCheck(ctx, winner.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestSessionService_InvalidateIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, env.svc.Invalidate(ctx, pair.SessionID, models.ReasonLogout))

	session, err := env.sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.InvalidatedAt)
	firstInvalidatedAt := *session.InvalidatedAt

	env.clock.Advance(time.Minute)
	require.NoError(t, env.svc.Invalidate(ctx, pair.SessionID, models.ReasonLogout))

	session, err = env.sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.Equal(t, firstInvalidatedAt, *session.InvalidatedAt)
}

func TestSessionService_InvalidateBlacklistsAccessToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	claims, err := env.svc.DecodeAndCheck(ctx, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.svc.Invalidate(ctx, pair.SessionID, models.ReasonLogout))

	revoked, err := env.svc.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = env.svc.DecodeAndCheck(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)

	// A refresh against the dead session is refused.
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestSessionService_RevokeAllForUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	one, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)
	two, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)
	other, err := env.svc.CreateSession(ctx, "7", "x@y.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, env.svc.RevokeAllForUser(ctx, "42"))

	for _, pair := range []*TokenPair{one, two} {
		_, err := env.svc.Refresh(ctx, pair.RefreshToken)
		require.Error(t, err)

		_, err = env.svc.DecodeAndCheck(ctx, pair.AccessToken)
		require.ErrorIs(t, err, ErrTokenRevoked)
	}

	// The other user's session is untouched.
	_, err = env.svc.Refresh(ctx, other.RefreshToken)
	require.NoError(t, err)
}

func TestSessionService_RefreshRejectsAccessToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	_, err = env.svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionService_RefreshGarbage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	_, err := env.svc.Refresh(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionService_SlidingActivity(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	pair, err := env.svc.CreateSession(ctx, "42", "a@b.com", []string{"member"}, models.SessionMetadata{})
	require.NoError(t, err)

	before, err := env.sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	after, err := env.sessions.GetSession(ctx, pair.SessionID)
	require.NoError(t, err)
	assert.True(t, after.LastActivity.After(before.CreatedAt))
}
