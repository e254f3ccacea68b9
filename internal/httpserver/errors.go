package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/logging"
)

type errorMapping struct {
	target error
	status int
	msg    string
}

// Order matters: more specific errors first.
var errorMappings = []errorMapping{
	{domain.ErrConflict, http.StatusConflict, "Email already registered"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{domain.ErrAccountDisabled, http.StatusForbidden, "Account is not verified"},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "Token expired"},
	{domain.ErrTokenInvalid, http.StatusUnauthorized, "Invalid token"},
	{domain.ErrTokenNotRecognized, http.StatusUnauthorized, "Refresh token not recognized"},
	{domain.ErrTokenExpiredOrRevoked, http.StatusUnauthorized, "Refresh token expired or revoked"},
	{domain.ErrSubjectMismatch, http.StatusUnauthorized, "Token subject mismatch"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "Not authenticated"},
	{domain.ErrOtpInvalidOrExpired, http.StatusBadRequest, "Invalid or expired OTP"},
	{domain.ErrNotFound, http.StatusNotFound, "User not found"},
}

// StatusFor maps err to an HTTP status and a client-facing message.
func StatusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}
	if errors.Is(err, domain.ErrValidation) {
		return http.StatusBadRequest, domain.ValidationMessage(err)
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.msg
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// HTTPErrorHandler renders every error as {"message": ...}. Unknown errors
// are logged and hidden behind a generic 500.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("unhandled_error",
			"path", c.Path(), "status", status, "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(status)
	} else {
		werr = c.JSON(status, echo.Map{"message": msg})
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("write_error_response", "error", werr)
	}
}
