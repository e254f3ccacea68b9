package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

const (
	identityKey  = "identity"
	authErrorKey = "auth_error"

	ReasonTokenExpired = "token_expired"
	ReasonInvalidToken = "invalid_token"
)

// PublicPaths are served without looking at the Authorization header.
var PublicPaths = []string{
	"/login",
	"/register",
	"/refresh",
	"/verify-otp",
	"/forgot-password",
	"/reset-password",
	"/logout",
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator resolves a bearer access token into a domain.Identity.
// Requests without a bearer token pass through anonymously; RequireAuth
// decides whether that is acceptable.
type Authenticator struct {
	Tokens *tokens.Codec
	Users  UserLookup
	public map[string]struct{}
}

func NewAuthenticator(codec *tokens.Codec, users UserLookup, basePath string) *Authenticator {
	base := strings.TrimRight(basePath, "/")
	public := make(map[string]struct{}, len(PublicPaths))
	for _, p := range PublicPaths {
		public[base+p] = struct{}{}
	}
	return &Authenticator{Tokens: codec, Users: users, public: public}
}

func (a *Authenticator) isPublic(path string) bool {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	_, ok := a.public[path]
	return ok
}

func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if a.isPublic(c.Request().URL.Path) {
			return next(c)
		}
		if _, ok := IdentityFrom(c); ok {
			return next(c)
		}
		raw, ok := bearerToken(c)
		if !ok {
			return next(c)
		}

		id, err := a.authenticate(c.Request().Context(), raw)
		switch {
		case errors.Is(err, domain.ErrTokenExpired):
			return reject(c, ReasonTokenExpired, "Access token expired")
		case errors.Is(err, domain.ErrTokenInvalid):
			return reject(c, ReasonInvalidToken, "Invalid access token")
		case err != nil:
			return err
		}
		if id != nil {
			SetIdentity(c, id)
		}
		return next(c)
	}
}

// authenticate returns a nil identity for tokens whose subject no longer
// maps to an enabled account.
func (a *Authenticator) authenticate(ctx context.Context, raw string) (*domain.Identity, error) {
	if a.Tokens.IsRefreshToken(raw) {
		return nil, domain.ErrTokenInvalid
	}
	claims, err := a.Tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokens.KindAccess {
		return nil, domain.ErrTokenInvalid
	}

	user, err := a.Users.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		logging.FromContext(ctx).Info("auth_subject_unknown", "user_id", claims.Subject)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		logging.FromContext(ctx).Info("auth_subject_disabled", "user_id", user.ID)
		return nil, nil
	}

	return &domain.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		Roles:       user.RoleNames(),
		Authorities: domain.Authorities(user.RoleNames()),
	}, nil
}

func reject(c echo.Context, reason, msg string) error {
	logging.FromContext(c.Request().Context()).Warn("auth_rejected", "reason", reason)
	c.Set(authErrorKey, reason)
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="`+reason+`"`)
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error":   reason,
		"message": msg,
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := IdentityFrom(c); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}
		return next(c)
	}
}

// RequireAuthority rejects callers lacking authority, e.g. "ROLE_ADMIN".
func RequireAuthority(authority string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}
			if !id.HasAuthority(authority) {
				return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
			}
			return next(c)
		}
	}
}

func SetIdentity(c echo.Context, id *domain.Identity) {
	c.Set(identityKey, id)
}

func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	id, ok := c.Get(identityKey).(*domain.Identity)
	return id, ok && id != nil
}

// ClearIdentity drops the caller identity for the rest of the request.
func ClearIdentity(c echo.Context) {
	c.Set(identityKey, nil)
}

// AuthError reports the rejection reason tagged on c, if any.
func AuthError(c echo.Context) string {
	s, _ := c.Get(authErrorKey).(string)
	return s
}
