package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/logging"
	"github.com/Skotchmaster/auth_service/internal/models"
)

// ErrReused is returned by Rotate when the presented jti was already rotated
// once. It matches domain.ErrTokenExpiredOrRevoked.
var ErrReused = fmt.Errorf("%w: already rotated", domain.ErrTokenExpiredOrRevoked)

// maxChain bounds RevokeChain walks.
const maxChain = 1024

// RefreshLedger records every refresh token ever issued, keyed by jti.
type RefreshLedger struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time

	// RevokeChainOnReuse revokes all descendants when an already rotated
	// jti is presented again.
	RevokeChainOnReuse bool
}

func NewRefreshLedger(db *gorm.DB, ttl time.Duration) *RefreshLedger {
	return &RefreshLedger{DB: db, TTL: ttl, Now: time.Now}
}

func (l *RefreshLedger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

func (l *RefreshLedger) entry(userID string) *models.RefreshToken {
	now := l.now()
	return &models.RefreshToken{
		JTI:       uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(l.TTL),
	}
}

// Create stores a fresh, unrevoked entry for userID and returns its jti.
func (l *RefreshLedger) Create(ctx context.Context, userID string) (string, error) {
	e := l.entry(userID)
	if err := l.DB.WithContext(ctx).Create(e).Error; err != nil {
		return "", fmt.Errorf("create refresh entry: %w", err)
	}
	return e.JTI, nil
}

func (l *RefreshLedger) Lookup(ctx context.Context, jti string) (*models.RefreshToken, error) {
	return lookup(l.DB.WithContext(ctx), jti)
}

func lookup(db *gorm.DB, jti string) (*models.RefreshToken, error) {
	var e models.RefreshToken
	if err := db.Where("jti = ?", jti).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTokenNotRecognized
		}
		return nil, fmt.Errorf("lookup refresh entry: %w", err)
	}
	return &e, nil
}

// Rotate retires jti and creates its successor for the same user. Of several
// concurrent calls with the same jti exactly one succeeds; the others get
// domain.ErrTokenExpiredOrRevoked.
func (l *RefreshLedger) Rotate(ctx context.Context, jti, claimedUserID string) (string, error) {
	var newJTI string
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := lookup(tx.Clauses(clause.Locking{Strength: "UPDATE"}), jti)
		if err != nil {
			return err
		}
		if old.Revoked && old.ReplacedBy != nil {
			return ErrReused
		}
		if !old.Usable(l.now()) {
			return domain.ErrTokenExpiredOrRevoked
		}
		if old.UserID != claimedUserID {
			return domain.ErrSubjectMismatch
		}

		next := l.entry(old.UserID)
		res := tx.Model(&models.RefreshToken{}).
			Where("jti = ? AND revoked = ? AND replaced_by IS NULL", jti, false).
			Updates(map[string]any{"revoked": true, "replaced_by": next.JTI})
		if res.Error != nil {
			return fmt.Errorf("retire refresh entry: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrTokenExpiredOrRevoked
		}
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("create refresh entry: %w", err)
		}
		newJTI = next.JTI
		return nil
	})
	if errors.Is(err, ErrReused) {
		logging.FromContext(ctx).Warn("refresh token reuse", "event", "refresh_reuse", "jti", jti)
		if l.RevokeChainOnReuse {
			if n, cerr := l.RevokeChain(ctx, jti); cerr != nil {
				logging.FromContext(ctx).Error("revoke chain", "jti", jti, "err", cerr)
			} else {
				logging.FromContext(ctx).Warn("refresh chain revoked", "jti", jti, "revoked", n)
			}
		}
	}
	if err != nil {
		return "", err
	}
	return newJTI, nil
}

// Revoke marks jti revoked. Unknown or already revoked entries are fine.
func (l *RefreshLedger) Revoke(ctx context.Context, jti string) error {
	err := l.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("jti = ? AND revoked = ?", jti, false).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("revoke refresh entry: %w", err)
	}
	return nil
}

// RevokeChain revokes every successor of jti and returns how many entries
// changed state.
func (l *RefreshLedger) RevokeChain(ctx context.Context, jti string) (int64, error) {
	var total int64
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur := jti
		for i := 0; i < maxChain && cur != ""; i++ {
			e, err := lookup(tx, cur)
			if errors.Is(err, domain.ErrTokenNotRecognized) {
				return nil
			}
			if err != nil {
				return err
			}
			if !e.Revoked {
				res := tx.Model(&models.RefreshToken{}).
					Where("id = ? AND revoked = ?", e.ID, false).
					Update("revoked", true)
				if res.Error != nil {
					return fmt.Errorf("revoke chain: %w", res.Error)
				}
				total += res.RowsAffected
			}
			cur = ""
			if e.ReplacedBy != nil {
				cur = *e.ReplacedBy
			}
		}
		return nil
	})
	return total, err
}

func (l *RefreshLedger) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	res := l.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if res.Error != nil {
		return 0, fmt.Errorf("revoke user refresh entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PruneExpired deletes entries that expired before the given instant.
func (l *RefreshLedger) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	res := l.DB.WithContext(ctx).
		Where("expires_at < ?", before.UTC()).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune refresh entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}
