package httpapi

import (
	"errors"
	"mime"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/labstack/echo/v4"
)

// statusFor maps engine and directory errors to HTTP errors. Internal detail
// is never echoed back.
func statusFor(err error) *echo.HTTPError {
	var code int
	switch {
	case errors.Is(err, goSession.ErrMissingToken):
		code = http.StatusBadRequest
	case errors.Is(err, goSession.ErrReuseDetected),
		errors.Is(err, goSession.ErrInvalidToken),
		errors.Is(err, goSession.ErrTokenExpired),
		errors.Is(err, goSession.ErrInvalidCredentials):
		code = http.StatusUnauthorized
	case errors.Is(err, goSession.ErrAccountDisabled),
		errors.Is(err, goSession.ErrResetInvalid):
		code = http.StatusForbidden
	case errors.Is(err, goSession.ErrUserNotFound):
		code = http.StatusNotFound
	case errors.Is(err, goSession.ErrAccountExists):
		code = http.StatusConflict
	case errors.Is(err, goSession.ErrPasswordPolicy),
		errors.Is(err, goSession.ErrInvalidProfile):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, goSession.ErrStoreUnavailable),
		errors.Is(err, goSession.ErrDirectoryUnavailable),
		errors.Is(err, goSession.ErrDeliveryFailed),
		errors.Is(err, goSession.ErrEngineNotReady):
		code = http.StatusServiceUnavailable
	default:
		code = http.StatusInternalServerError
	}

	he := echo.NewHTTPError(code, messageFor(code, err))
	return he.SetInternal(err)
}

func messageFor(code int, err error) string {
	switch code {
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return http.StatusText(code)
	}
	// Sentinel text is safe to show; wrapped detail is not.
	for _, s := range []error{
		goSession.ErrReuseDetected,
		goSession.ErrMissingToken,
		goSession.ErrInvalidToken,
		goSession.ErrTokenExpired,
		goSession.ErrInvalidCredentials,
		goSession.ErrAccountDisabled,
		goSession.ErrResetInvalid,
		goSession.ErrUserNotFound,
		goSession.ErrAccountExists,
		goSession.ErrPasswordPolicy,
		goSession.ErrInvalidProfile,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return http.StatusText(code)
}

func unprocessable(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, msg)
}

// RequireJSON rejects requests whose Content-Type is not application/json.
func RequireJSON(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ct := c.Request().Header.Get(echo.HeaderContentType)
		if ct == "" {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Content-Type header is blank")
		}
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != echo.MIMEApplicationJSON {
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Unsupported Media Type")
		}
		return next(c)
	}
}
