package middleware

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/metrics"
)

// RequestLogger puts a request scoped logger into the request context and
// logs one line per request. Errors are rendered here so the logged status
// is the one the client sees.
func RequestLogger(base *slog.Logger, rec metrics.Recorder) echo.MiddlewareFunc {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := base.With(
				"method", c.Request().Method,
				"path", c.Path(),
				"url", c.Request().URL.Path,
				"remote_ip", c.RealIP(),
				"user_agent", c.Request().UserAgent(),
			)
			if rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}

			req := c.Request().WithContext(logging.IntoContext(c.Request().Context(), l))
			c.SetRequest(req)

			start := time.Now()
			err := next(c)
			dur := time.Since(start)

			if err != nil {
				c.Echo().HTTPErrorHandler(err, c)
			}
			status := c.Response().Status
			rec.RecordHTTPRequest(c.Request().Method, status, dur)

			attrs := []any{"status", status, "duration_ms", dur.Milliseconds()}
			if id, ok := IdentityFrom(c); ok {
				attrs = append(attrs, "user_id", id.UserID)
			}
			if reason := AuthError(c); reason != "" {
				attrs = append(attrs, "auth_error", reason)
			}

			switch {
			case err != nil && status >= 500:
				l.Error("request completed", append(attrs, "error", errStr(err))...)
			case status >= 500:
				l.Error("request completed", attrs...)
			case status >= 400:
				l.Warn("request completed", attrs...)
			default:
				l.Info("request completed", append(attrs, "bytes", c.Response().Size)...)
			}
			return nil
		}
	}
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
