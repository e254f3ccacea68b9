package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/middleware"
)

const DefaultCookieName = "refresh_token"

// CookieTransport carries the refresh token in an httpOnly cookie scoped
// to the auth routes.
type CookieTransport struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (t CookieTransport) name() string {
	if t.Name == "" {
		return DefaultCookieName
	}
	return t.Name
}

func (t CookieTransport) cookie(value string, maxAge int) *http.Cookie {
	sameSite := t.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	path := t.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     t.name(),
		Value:    value,
		Path:     path,
		Domain:   t.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: sameSite,
	}
}

func (t CookieTransport) Attach(c echo.Context, value string, maxAgeSeconds int64) {
	ck := t.cookie(value, int(maxAgeSeconds))
	ck.Expires = time.Now().Add(time.Duration(maxAgeSeconds) * time.Second)
	c.SetCookie(ck)
}

func (t CookieTransport) Clear(c echo.Context) {
	ck := t.cookie("", -1)
	ck.Expires = time.Unix(0, 0)
	c.SetCookie(ck)
}

// ClearContext forgets the caller identity for the rest of the request.
func (t CookieTransport) ClearContext(c echo.Context) {
	middleware.ClearIdentity(c)
}

// Read returns the cookie value, if present.
func (t CookieTransport) Read(c echo.Context) string {
	ck, err := c.Cookie(t.name())
	if err != nil {
		return ""
	}
	return ck.Value
}

func noStore(c echo.Context) {
	h := c.Response().Header()
	h.Set(echo.HeaderCacheControl, "no-store")
	h.Set("Pragma", "no-cache")
}
