package httpserver

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/tokens"
	"github.com/Skotchmaster/auth_service/internal/transport"
)

const HeaderRefreshToken = "X-Refresh-Token"

// refreshToken finds the presented refresh token. Precedence: cookie, JSON
// body, X-Refresh-Token header, then a bearer header only when it carries a
// refresh token.
func (h *AuthHTTP) refreshToken(c echo.Context) string {
	if v := h.Cookies.Read(c); v != "" {
		return v
	}

	var body transport.RefreshRequest
	if c.Request().ContentLength != 0 {
		_ = (&echo.DefaultBinder{}).BindBody(c, &body)
	}
	if v := strings.TrimSpace(body.RefreshToken); v != "" {
		return v
	}

	if v := strings.TrimSpace(c.Request().Header.Get(HeaderRefreshToken)); v != "" {
		return v
	}

	return bearerRefresh(c, h.Tokens)
}

func bearerRefresh(c echo.Context, codec *tokens.Codec) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	raw := strings.TrimSpace(auth[7:])
	if raw == "" {
		return ""
	}
	// Expired refresh tokens still qualify; Svc.Refresh reports the expiry.
	if kind, err := codec.Kind(raw); err != nil || kind != tokens.KindRefresh {
		return ""
	}
	return raw
}
