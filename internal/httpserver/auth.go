package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/internal/tokens"
	"github.com/Skotchmaster/auth_service/internal/transport"
)

type AuthHTTP struct {
	Svc     *service.AuthService
	Tokens  *tokens.Codec
	Cookies CookieTransport
}

func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		logging.FromContext(c.Request().Context()).Warn("bind_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if v, ok := req.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return domain.Validation(err)
		}
	}
	return nil
}

func identity(c echo.Context) (*domain.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return id, nil
}

func (h *AuthHTTP) writeTokens(c echo.Context, res *service.LoginResult) error {
	h.Cookies.Attach(c, res.RefreshToken, res.RefreshMaxAge)
	noStore(c)
	c.Response().Header().Set(echo.HeaderAuthorization, "Bearer "+res.AccessToken)
	return c.JSON(http.StatusOK, transport.NewTokenResponse(res))
}

func (h *AuthHTTP) Register(c echo.Context) error {
	var req transport.RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.Svc.Register(c.Request().Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Mobile:   req.Mobile,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, service.Summarize(user))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	var req transport.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.Svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.writeTokens(c, res)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	presented := h.refreshToken(c)

	res, err := h.Svc.Refresh(c.Request().Context(), presented)
	if err != nil {
		if status, _ := StatusFor(err); status == http.StatusUnauthorized {
			h.Cookies.Clear(c)
		}
		return err
	}
	return h.writeTokens(c, res)
}

// Logout always succeeds.
func (h *AuthHTTP) Logout(c echo.Context) error {
	h.Svc.Logout(c.Request().Context(), h.refreshToken(c))

	h.Cookies.Clear(c)
	h.Cookies.ClearContext(c)
	noStore(c)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "logged out"})
}

func (h *AuthHTTP) VerifyOtp(c echo.Context) error {
	var req transport.VerifyOtpRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Svc.VerifyRegistrationOtp(c.Request().Context(), req.Email, req.Otp); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Email verified"})
}

func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	var req transport.ForgotPasswordRequest
	if err := c.Bind(&req); err == nil {
		h.Svc.ForgotPassword(c.Request().Context(), req.Email)
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{
		Message: "If the account exists, a reset code has been sent",
	})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	var req transport.ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Svc.ResetPassword(c.Request().Context(), req.Email, req.Otp, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Password reset"})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req transport.ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.Svc.ChangePassword(c.Request().Context(), id.UserID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Password changed"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	me, err := h.Svc.Me(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

func (h *AuthHTTP) UpdateProfile(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req transport.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	updated, err := h.Svc.UpdateProfile(c.Request().Context(), id.UserID, service.ProfileInput{
		Name:   req.Name,
		Mobile: req.Mobile,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *AuthHTTP) DeleteAccount(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteAccount(c.Request().Context(), id.UserID); err != nil {
		return err
	}
	h.Cookies.Clear(c)
	h.Cookies.ClearContext(c)
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Account deleted"})
}
