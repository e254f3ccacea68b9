package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/tokens"
)

const publishTimeout = 5 * time.Second

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Save(ctx context.Context, u *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type Hasher interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, hash string) bool
	Burn(plaintext string)
}

type RefreshStore interface {
	Create(ctx context.Context, userID string) (string, error)
	Rotate(ctx context.Context, jti, claimedUserID string) (string, error)
	Revoke(ctx context.Context, jti string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

type OtpStore interface {
	Issue(ctx context.Context, email string, purpose domain.OtpPurpose) (string, error)
	Verify(ctx context.Context, email, code string, purpose domain.OtpPurpose) error
	Invalidate(ctx context.Context, email, code string, purpose domain.OtpPurpose) error
}

type AuthService struct {
	Users     UserStore
	Hasher    Hasher
	Refreshes RefreshStore
	Otps      OtpStore
	Tokens    *tokens.Codec
	Policy    PasswordPolicy
	Events    events.Publisher
	Metrics   metrics.Recorder
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Mobile   string
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 320), is.Email),
		validation.Field(&in.Name, validation.Length(0, 255)),
		validation.Field(&in.Mobile, validation.Length(0, 32)),
	)
}

type ProfileInput struct {
	Name   string
	Mobile string
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Length(0, 255)),
		validation.Field(&in.Mobile, validation.Length(0, 32)),
	)
}

type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile,omitempty"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func Summarize(u *models.User) *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Mobile:    u.Mobile,
		Enabled:   u.Enabled,
		Roles:     u.RoleNames(),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type LoginResult struct {
	AccessToken   string
	RefreshToken  string
	ExpiresIn     int64
	RefreshMaxAge int64 // seconds
	User          *UserSummary
}

func (s *AuthService) recorder() metrics.Recorder {
	if s.Metrics == nil {
		return metrics.Noop{}
	}
	return s.Metrics
}

// publish never fails the caller.
func (s *AuthService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Events.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "type", e.Type, "error", err)
	}
}

func wrapInternal(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInternal, err)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	in.Email = domain.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)
	if err := in.Validate(); err != nil {
		return nil, domain.Validation(err)
	}
	if err := s.Policy.Check(in.Password); err != nil {
		l.Info("register_failed", "reason", "weak_password")
		return nil, err
	}

	exists, err := s.Users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		l.Info("register_failed", "reason", "user_exists")
		return nil, domain.ErrConflict
	}

	pwHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, wrapInternal(err)
	}
	user, err := s.Users.Save(ctx, &models.User{
		Email:        in.Email,
		Name:         in.Name,
		Mobile:       in.Mobile,
		PasswordHash: &pwHash,
		Enabled:      false,
		Roles:        []models.UserRole{{Name: string(domain.RoleUser)}},
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Otps.Issue(ctx, user.Email, domain.OtpRegister); err != nil {
		l.Error("register_otp_failed", "user_id", user.ID, "error", err)
		// Without a code the account could never be verified, and the email
		// would stay taken.
		if derr := s.Users.Delete(context.WithoutCancel(ctx), user.ID); derr != nil {
			l.Error("register_rollback_failed", "user_id", user.ID, "error", derr)
		}
		return nil, wrapInternal(err)
	}

	l.Info("register_success", "user_id", user.ID)
	s.publish(ctx, events.New(events.UserRegistered, user.ID, user.Email))
	return user, nil
}

func (s *AuthService) VerifyRegistrationOtp(ctx context.Context, email, code string) error {
	l := logging.FromContext(ctx).With("svc", "auth.verify_otp")
	email = domain.NormalizeEmail(email)

	if err := s.Otps.Verify(ctx, email, strings.TrimSpace(code), domain.OtpRegister); err != nil {
		l.Info("verify_otp_failed", logging.Email(email), "error", err)
		return err
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.Enabled {
		user.Enabled = true
		if _, err := s.Users.Save(ctx, user); err != nil {
			return err
		}
	}

	l.Info("verify_otp_success", "user_id", user.ID)
	s.publish(ctx, events.New(events.UserVerified, user.ID, user.Email))
	return nil
}

func (s *AuthService) issuePair(userID, jti string) (*LoginResult, error) {
	access, expiresIn, err := s.Tokens.IssueAccess(userID)
	if err != nil {
		return nil, wrapInternal(err)
	}
	refresh, err := s.Tokens.IssueRefresh(userID, jti)
	if err != nil {
		return nil, wrapInternal(err)
	}
	return &LoginResult{
		AccessToken:   access,
		RefreshToken:  refresh,
		ExpiresIn:     expiresIn,
		RefreshMaxAge: int64(s.Tokens.RefreshTTL().Seconds()),
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	logging.FromContext(ctx).Warn("login_failed", logging.Email(email), "reason", reason)
	s.recorder().RecordLogin(reason)
	s.publish(ctx, events.New(events.LoginFailed, "", email).With("reason", reason))
}

// Login checks the credentials and opens a new refresh chain. Unknown
// emails, accounts without a password and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)

	user, err := s.Users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.Hasher.Burn(password)
		s.loginFailed(ctx, email, "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CanPasswordLogin() {
		s.Hasher.Burn(password)
		s.loginFailed(ctx, email, "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}
	if !s.Hasher.Matches(password, *user.PasswordHash) {
		s.loginFailed(ctx, email, "invalid_credentials")
		return nil, domain.ErrInvalidCredentials
	}
	if !user.Enabled {
		s.loginFailed(ctx, email, "account_disabled")
		return nil, domain.ErrAccountDisabled
	}

	jti, err := s.Refreshes.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	res, err := s.issuePair(user.ID, jti)
	if err != nil {
		return nil, err
	}
	res.User = Summarize(user)

	logging.FromContext(ctx).Info("login_success", "user_id", user.ID)
	s.recorder().RecordLogin("success")
	s.publish(ctx, events.New(events.LoginSucceeded, user.ID, user.Email))
	return res, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// retired in the same step.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	res, userID, err := s.refresh(ctx, presented)
	if err != nil {
		reason := refreshReason(err)
		l.Warn("refresh_rejected", "reason", reason, "error", err)
		s.recorder().RecordRefresh(reason)
		s.publish(ctx, events.New(events.RefreshRejected, userID, "").With("reason", reason))
		return nil, err
	}

	s.recorder().RecordRefresh("rotated")
	s.publish(ctx, events.New(events.TokenRefreshed, userID, ""))
	return res, nil
}

func (s *AuthService) refresh(ctx context.Context, presented string) (*LoginResult, string, error) {
	if strings.TrimSpace(presented) == "" {
		return nil, "", domain.ErrTokenInvalid
	}
	claims, err := s.Tokens.Verify(presented)
	if err != nil {
		return nil, "", err
	}
	if claims.Type != tokens.KindRefresh {
		return nil, claims.Subject, fmt.Errorf("%w: not a refresh token", domain.ErrTokenInvalid)
	}

	user, err := s.Users.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, claims.Subject, fmt.Errorf("%w: unknown subject", domain.ErrTokenInvalid)
	}
	if err != nil {
		return nil, claims.Subject, err
	}
	if !user.Enabled {
		return nil, user.ID, domain.ErrAccountDisabled
	}

	newJTI, err := s.Refreshes.Rotate(ctx, claims.ID, claims.Subject)
	if err != nil {
		return nil, user.ID, err
	}
	res, err := s.issuePair(user.ID, newJTI)
	return res, user.ID, err
}

func refreshReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid_token"
	case errors.Is(err, domain.ErrTokenNotRecognized):
		return "not_recognized"
	case errors.Is(err, domain.ErrTokenExpiredOrRevoked):
		return "expired_or_revoked"
	case errors.Is(err, domain.ErrSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, domain.ErrAccountDisabled):
		return "account_disabled"
	default:
		return "error"
	}
}

// Logout revokes the refresh token when it can be decoded. Nothing here is
// reported to the caller.
func (s *AuthService) Logout(ctx context.Context, presented string) {
	l := logging.FromContext(ctx).With("svc", "auth.logout")
	if strings.TrimSpace(presented) == "" {
		return
	}
	claims, err := s.Tokens.Verify(presented)
	if err != nil {
		l.Info("logout_token_ignored", "error", err)
		return
	}
	if claims.Type != tokens.KindRefresh {
		l.Info("logout_token_ignored", "reason", "not_refresh")
		return
	}
	if err := s.Refreshes.Revoke(ctx, claims.ID); err != nil {
		l.Error("logout_revoke_failed", "jti", claims.ID, "error", err)
		return
	}
	l.Info("logout_success", "user_id", claims.Subject)
	s.publish(ctx, events.New(events.LoggedOut, claims.Subject, ""))
}

// ForgotPassword issues a reset code. The outcome is never reported so the
// endpoint cannot be used to probe for accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")
	email = domain.NormalizeEmail(email)
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		l.Info("forgot_password_ignored", "reason", "invalid_email")
		return
	}
	if _, err := s.Otps.Issue(ctx, email, domain.OtpReset); err != nil {
		l.Error("forgot_password_failed", logging.Email(email), "error", err)
	}
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	err := s.resetPassword(ctx, domain.NormalizeEmail(email), strings.TrimSpace(code), newPassword)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOtpInvalidOrExpired),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInternal):
		return err
	default:
		return wrapInternal(err)
	}
}

func (s *AuthService) resetPassword(ctx context.Context, email, code, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.reset_password")

	if err := s.Policy.Check(newPassword); err != nil {
		return err
	}
	// The code is consumed only once nothing but storage can fail.
	pwHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.Otps.Verify(ctx, email, code, domain.OtpReset); err != nil {
		l.Info("reset_password_failed", logging.Email(email), "error", err)
		return err
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	user.PasswordHash = &pwHash
	if _, err := s.Users.Save(ctx, user); err != nil {
		return err
	}

	if err := s.Otps.Invalidate(ctx, email, code, domain.OtpReset); err != nil {
		l.Error("reset_otp_invalidate_failed", "error", err)
	}
	n, err := s.Refreshes.RevokeAllForUser(ctx, user.ID)
	if err != nil {
		l.Error("reset_revoke_failed", "user_id", user.ID, "error", err)
	}

	l.Info("reset_password_success", "user_id", user.ID, "revoked", n)
	s.publish(ctx, events.New(events.PasswordReset, user.ID, user.Email))
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.CanPasswordLogin() || !s.Hasher.Matches(oldPassword, *user.PasswordHash) {
		logging.FromContext(ctx).Warn("change_password_failed", "user_id", userID, "reason", "old_password_mismatch")
		return domain.ErrInvalidCredentials
	}
	if err := s.Policy.Check(newPassword); err != nil {
		return err
	}

	pwHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return wrapInternal(err)
	}
	user.PasswordHash = &pwHash
	if _, err := s.Users.Save(ctx, user); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("change_password_success", "user_id", userID)
	s.publish(ctx, events.New(events.PasswordChanged, user.ID, user.Email))
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (*UserSummary, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(user), nil
}

// UpdateProfile sets name and mobile; blank fields are left as they are.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*UserSummary, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)
	if err := in.Validate(); err != nil {
		return nil, domain.Validation(err)
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		user.Name = in.Name
	}
	if in.Mobile != "" {
		user.Mobile = in.Mobile
	}
	user, err = s.Users.Save(ctx, user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.ProfileUpdated, user.ID, user.Email))
	return Summarize(user), nil
}

// DeleteAccount revokes every refresh token of the user, then removes it.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	l := logging.FromContext(ctx).With("svc", "auth.delete_account")

	if _, err := s.Refreshes.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.Users.Delete(ctx, userID); err != nil {
		return err
	}

	l.Info("account_deleted", "user_id", userID)
	s.publish(ctx, events.New(events.AccountDeleted, userID, ""))
	return nil
}
