package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/auth_service/internal/domain"
	"github.com/Skotchmaster/auth_service/internal/models"
)

// Users is the gorm-backed user store.
type Users struct {
	DB *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{DB: db}
}

func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", domain.NormalizeEmail(email))
}

func (r *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *Users) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Preload("Roles").Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", domain.NormalizeEmail(email)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

// Save inserts u (with its roles) when it has no id yet, otherwise updates
// the user columns. Roles of an existing user are left untouched.
func (r *Users) Save(ctx context.Context, u *models.User) (*models.User, error) {
	u.Email = domain.NormalizeEmail(u.Email)
	db := r.DB.WithContext(ctx)

	if u.ID == "" {
		u.ID = uuid.NewString()
		for i := range u.Roles {
			u.Roles[i].UserID = u.ID
		}
		if err := db.Create(u).Error; err != nil {
			if isDuplicate(err) {
				return nil, domain.ErrConflict
			}
			return nil, fmt.Errorf("create user: %w", err)
		}
		return u, nil
	}

	res := db.Omit(clause.Associations).Save(u)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("update user: %w", res.Error)
	}
	return u, nil
}

// Delete removes the user and its roles.
func (r *Users) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserRole{}).Error; err != nil {
			return fmt.Errorf("delete roles: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return fmt.Errorf("delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// isDuplicate covers drivers that do not translate unique violations.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
