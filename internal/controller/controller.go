package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/service"
	"github.com/rryowa/sessionguard/internal/util"
)

type Controller struct {
	zapLogger      *zap.SugaredLogger
	sessionService *service.SessionService
	passwordHasher *service.PasswordHasher
}

func NewController(logger *zap.SugaredLogger, sessionService *service.SessionService, passwordHasher *service.PasswordHasher) *Controller {
	return &Controller{
		zapLogger:      logger,
		sessionService: sessionService,
		passwordHasher: passwordHasher,
	}
}

// Register wires the auth routes. Logout and revoke-all require a live
// access token; session creation is called by the application's own
// authentication step after it has verified credentials.
func (c *Controller) Register(g *echo.Group, bearerAuth echo.MiddlewareFunc) {
	g.GET("/ping", c.CheckServer)
	g.POST("/auth/sessions", c.CreateSession)
	g.POST("/auth/refresh", c.Refresh)
	g.POST("/auth/logout", c.Logout, bearerAuth)
	g.POST("/auth/revoke-all", c.RevokeAll, bearerAuth)
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/auth/sessions).
func (c *Controller) CreateSession(ctx echo.Context) error {
	var req models.CreateSessionRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return util.NewResponseError(http.StatusBadRequest, "user_id is required")
	}

	// Optional credential check: the caller hands over the stored hash so the
	// bcrypt cost policy stays in one place.
	if req.Password != "" || req.PasswordHash != "" {
		if !c.passwordHasher.Verify(req.Password, req.PasswordHash) {
			return service.ErrInvalidCredentials
		}
	}

	meta := models.SessionMetadata{
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		AAL:       req.AAL,
	}
	if meta.IPAddress == "" {
		meta.IPAddress = ctx.RealIP()
	}
	if meta.UserAgent == "" {
		meta.UserAgent = ctx.Request().UserAgent()
	}

	pair, err := c.sessionService.CreateSession(ctx.Request().Context(), req.UserID, req.Email, req.Roles, meta)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, tokenPairResponse(pair, true))
}

// (POST /api/auth/refresh).
func (c *Controller) Refresh(ctx echo.Context) error {
	var req models.TokenRefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "invalid request body")
	}
	if req.RefreshToken == "" {
		return util.NewResponseError(http.StatusBadRequest, "refresh_token is required")
	}

	pair, err := c.sessionService.Refresh(ctx.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, tokenPairResponse(pair, false))
}

// (POST /api/auth/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	sessionID, _ := ctx.Get(models.MwSessionKey).(string)
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "token carries no session")
	}

	if err := c.sessionService.Invalidate(ctx.Request().Context(), sessionID, models.ReasonLogout); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusNoContent)
}

// (POST /api/auth/revoke-all).
func (c *Controller) RevokeAll(ctx echo.Context) error {
	userID, _ := ctx.Get(models.MwUserIDKey).(string)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "token carries no subject")
	}

	if err := c.sessionService.RevokeAllForUser(ctx.Request().Context(), userID); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusNoContent)
}

func tokenPairResponse(pair *service.TokenPair, includeSession bool) models.TokenPairResponse {
	resp := models.TokenPairResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt.Unix(),
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	}
	if includeSession {
		resp.SessionID = pair.SessionID
	}
	return resp
}
