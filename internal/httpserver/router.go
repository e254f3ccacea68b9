package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/middleware"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	Authenticator *middleware.Authenticator
	Logger        *slog.Logger
	Metrics       metrics.Recorder
	Gatherer      prometheus.Gatherer
	Ready         func(ctx context.Context) error
	BasePath      string
}

// New builds the echo instance with every route and middleware.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = HTTPErrorHandler
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger, d.Metrics))
	e.Use(echomw.BodyLimit("64K"))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.Gatherer)))
	}

	base := "/" + strings.Trim(d.BasePath, "/")
	g := e.Group(base, d.Authenticator.Middleware)
	h := d.AuthHandler

	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	g.POST("/verify-otp", h.VerifyOtp)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)

	g.POST("/change-password", h.ChangePassword, middleware.RequireAuth)
	g.GET("/me", h.Me, middleware.RequireAuth)
	g.PUT("/update-user-profile", h.UpdateProfile, middleware.RequireAuth)
	g.DELETE("/delete-account", h.DeleteAccount, middleware.RequireAuth)
}
