package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/sessionguard/internal/service"
	"github.com/rryowa/sessionguard/internal/storage"
	"github.com/rryowa/sessionguard/internal/util"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if status, ok := statusForError(err); ok {
			if status == http.StatusServiceUnavailable {
				log.Errorw("transient failure", "error", err, "uri", c.Request().RequestURI)
			}
			c.JSON(status, map[string]string{"reason": err.Error()})
			return
		}

		var customErr util.MyResponseError
		if errors.As(err, &customErr) {
			c.JSON(customErr.Status, map[string]string{"reason": customErr.Msg})
			return
		}

		he, ok := err.(*echo.HTTPError)
		if ok {
			if he.Code == http.StatusInternalServerError {
				log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
			}
			if err := c.JSON(he.Code, map[string]string{"reason": http.StatusText(he.Code)}); err != nil {
				log.Errorw("failed to write json response", "error", err)
			}
			return
		}

		log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		c.JSON(http.StatusInternalServerError, map[string]string{"reason": "internal server error"})
	}
}

// statusForError maps the session error taxonomy onto HTTP statuses. The two
// transient kinds advertise retryability with 503; everything else tells the
// client to log in again.
func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrTokenReused),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusUnauthorized, true
	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusLocked, true
	case errors.Is(err, service.ErrLockAcquisitionTimeout),
		errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, true
	default:
		return 0, false
	}
}
