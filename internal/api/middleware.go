package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/models"
	"github.com/rryowa/sessionguard/internal/service"
)

const bearerPrefix = "Bearer "

// BearerAuthMiddleware decodes the bearer token, rejects revoked or
// non-access tokens, and stashes the verified claims in the echo context.
func BearerAuthMiddleware(ss *service.SessionService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return echo.NewHTTPError(http.StatusUnauthorized, "bearer token is missing")
			}
			token := strings.TrimPrefix(header, bearerPrefix)

			claims, err := ss.DecodeAndCheck(c.Request().Context(), token)
			if err != nil {
				return err
			}
			if claims.TokenType != service.TokenTypeAccess {
				return echo.NewHTTPError(http.StatusUnauthorized, "access token required")
			}

			c.Set(models.MwClaimsKey, claims)
			c.Set(models.MwTokenKey, token)
			c.Set(models.MwUserIDKey, claims.Subject)
			c.Set(models.MwSessionKey, claims.SessionID)

			return next(c)
		}
	}
}

func RequestLoggerMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", c.Request().Method,
				"uri", v.URI,
				"status", v.Status,
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				log.Errorw("Request", fields...)
			} else {
				log.Infow("Request", fields...)
			}
			return nil
		},
	})
}
