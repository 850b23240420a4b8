package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/service"
	"github.com/rryowa/sessionguard/internal/storage/memory"
	"github.com/rryowa/sessionguard/internal/util"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	tokenCfg := &util.TokenConfig{
		JwtSecretKey: []byte("test-secret"),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
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
	lockCfg := &util.LockConfig{
		TTL:           30 * time.Second,
		Wait:          200 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
	}

	log := zap.NewNop().Sugar()
	sessions := memory.NewSessionRepository(log, sessionCfg.SessionTTL)
	audit := memory.NewAuditLog()

	mgr := service.NewTokenFamilyManager(memory.NewFamilyRepository(), sessions, memory.NewLock(), audit, log, sessionCfg, lockCfg)
	svc, err := service.NewSessionService(service.NewTokenCodec(tokenCfg), mgr, sessions, memory.NewBlacklist(), audit, log, tokenCfg, sessionCfg)
	require.NoError(t, err)

	return NewController(log, svc, service.NewPasswordHasher(4))
}

func postJSON(body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/sessions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestController_CreateSession(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)

	ctx, rec := postJSON(`{"user_id":"42","email":"a@b.com","roles":["member"]}`)
	require.NoError(t, ctrl.CreateSession(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.TokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEmpty(t, resp.SessionID)
}

func TestController_CreateSessionRequiresUserID(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)

	ctx, _ := postJSON(`{"email":"a@b.com"}`)
	err := ctrl.CreateSession(ctx)
	require.Error(t, err)

	var respErr util.MyResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusBadRequest, respErr.Status)
}

func TestController_CreateSessionVerifiesPassword(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)

	hash, err := service.NewPasswordHasher(4).Hash("s3cret")
	require.NoError(t, err)

	ctx, _ := postJSON(fmt.Sprintf(`{"user_id":"42","password":"wrong","password_hash":%q}`, hash))
	require.ErrorIs(t, ctrl.CreateSession(ctx), service.ErrInvalidCredentials)

	// Password supplied without its hash can never verify.
	ctx, _ = postJSON(`{"user_id":"42","password":"s3cret"}`)
	require.ErrorIs(t, ctrl.CreateSession(ctx), service.ErrInvalidCredentials)

	ctx, rec := postJSON(fmt.Sprintf(`{"user_id":"42","password":"s3cret","password_hash":%q}`, hash))
	require.NoError(t, ctrl.CreateSession(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestController_RefreshRequiresToken(t *testing.T) {
	t.Parallel()

	ctrl := newTestController(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := ctrl.Refresh(echo.New().NewContext(req, rec))
	require.Error(t, err)

	var respErr util.MyResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusBadRequest, respErr.Status)
}
