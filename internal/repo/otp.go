package repo

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/mailer"
	"github.com/Skotchmaster/auth_service/internal/metrics"
	"github.com/Skotchmaster/auth_service/internal/models"
)

const DefaultOtpTTL = 10 * time.Minute

var codeSpace = big.NewInt(1_000_000)

// OtpLedger stores at most one code per (email, purpose) and mails it out.
type OtpLedger struct {
	DB      *gorm.DB
	Mail    mailer.Dispatcher
	Metrics metrics.Recorder
	AppName string
	TTL     time.Duration
	Now     func() time.Time
}

func NewOtpLedger(db *gorm.DB, mail mailer.Dispatcher, appName string) *OtpLedger {
	return &OtpLedger{
		DB:      db,
		Mail:    mail,
		Metrics: metrics.Noop{},
		AppName: appName,
		TTL:     DefaultOtpTTL,
		Now:     time.Now,
	}
}

func (l *OtpLedger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

func (l *OtpLedger) recorder() metrics.Recorder {
	if l.Metrics == nil {
		return metrics.Noop{}
	}
	return l.Metrics
}

func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue replaces any code for (email, purpose) with a fresh one and queues
// it for delivery. Delivery problems are logged, never returned.
func (l *OtpLedger) Issue(ctx context.Context, email string, purpose domain.OtpPurpose) (string, error) {
	email = domain.NormalizeEmail(email)
	code, err := newCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	now := l.now()
	row := models.Otp{
		ID:        uuid.NewString(),
		Email:     email,
		Purpose:   string(purpose),
		Code:      code,
		ExpiresAt: now.Add(l.TTL),
		CreatedAt: now,
	}

	err = l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ? AND purpose = ?", email, string(purpose)).
			Delete(&models.Otp{}).Error; err != nil {
			return fmt.Errorf("delete previous otp: %w", err)
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("store otp: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	l.recorder().RecordOtpIssued(string(purpose))

	l.dispatch(ctx, email, code, purpose)
	return code, nil
}

func (l *OtpLedger) dispatch(ctx context.Context, email, code string, purpose domain.OtpPurpose) {
	if l.Mail == nil {
		return
	}
	msg := mailer.Message{
		To:      email,
		Subject: fmt.Sprintf("%s - %s", l.AppName, purpose.Subject()),
		Body: fmt.Sprintf("Your OTP is: %s\nIt expires in %d minutes.\nDo not share this code.",
			code, int(l.TTL/time.Minute)),
	}
	if err := l.Mail.Send(ctx, msg); err != nil {
		l.recorder().RecordMailFailure()
		logging.FromContext(ctx).Error("otp_dispatch_failed",
			logging.Email(email), "purpose", string(purpose), "error", err)
	}
}

// Verify consumes the code. Unknown, used or expired codes all yield
// domain.ErrOtpInvalidOrExpired, and so does losing a race for the same code.
func (l *OtpLedger) Verify(ctx context.Context, email, code string, purpose domain.OtpPurpose) error {
	email = domain.NormalizeEmail(email)
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Otp
		err := tx.Where("email = ? AND code = ? AND purpose = ? AND used = ?",
			email, code, string(purpose), false).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrOtpInvalidOrExpired
		}
		if err != nil {
			return fmt.Errorf("find otp: %w", err)
		}
		if !row.ExpiresAt.After(l.now()) {
			return domain.ErrOtpInvalidOrExpired
		}

		res := tx.Model(&models.Otp{}).
			Where("id = ? AND used = ?", row.ID, false).
			Update("used", true)
		if res.Error != nil {
			return fmt.Errorf("consume otp: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrOtpInvalidOrExpired
		}
		return nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "invalid"
		if !errors.Is(err, domain.ErrOtpInvalidOrExpired) {
			outcome = "error"
		}
	}
	l.recorder().RecordOtpVerify(string(purpose), outcome)
	return err
}

// Invalidate marks a matching code used whatever its state.
func (l *OtpLedger) Invalidate(ctx context.Context, email, code string, purpose domain.OtpPurpose) error {
	err := l.DB.WithContext(ctx).Model(&models.Otp{}).
		Where("email = ? AND code = ? AND purpose = ?", domain.NormalizeEmail(email), code, string(purpose)).
		Update("used", true).Error
	if err != nil {
		return fmt.Errorf("invalidate otp: %w", err)
	}
	return nil
}

func (l *OtpLedger) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	res := l.DB.WithContext(ctx).
		Where("expires_at < ?", before.UTC()).
		Delete(&models.Otp{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune otps: %w", res.Error)
	}
	return res.RowsAffected, nil
}
