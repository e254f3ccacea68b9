package models

import "time"

type User struct {
	ID           string     `gorm:"primaryKey;size:36"                   json:"id"`
	Email        string     `gorm:"uniqueIndex;size:320;not null"        json:"email"`
	Name         string     `gorm:"size:255"                             json:"name"`
	Mobile       string     `gorm:"size:32"                              json:"mobile"`
	PasswordHash *string    `gorm:"size:255"                             json:"-"`
	Enabled      bool       `gorm:"not null;default:false"               json:"enabled"`
	Roles        []UserRole `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RoleNames flattens the role rows.
func (u *User) RoleNames() []string {
	out := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		out = append(out, r.Name)
	}
	return out
}

// CanPasswordLogin reports whether the account has a local password.
func (u *User) CanPasswordLogin() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

type UserRole struct {
	UserID string `gorm:"primaryKey;size:36" json:"-"`
	Name   string `gorm:"primaryKey;size:32" json:"name"`
}

type RefreshToken struct {
	ID         uint      `gorm:"primaryKey"                  json:"id"`
	JTI        string    `gorm:"uniqueIndex;size:64;not null" json:"jti"`
	UserID     string    `gorm:"index;size:36;not null"      json:"user_id"`
	CreatedAt  time.Time `gorm:"not null"                    json:"created_at"`
	ExpiresAt  time.Time `gorm:"index;not null"              json:"expires_at"`
	Revoked    bool      `gorm:"not null;default:false"      json:"revoked"`
	ReplacedBy *string   `gorm:"size:64"                     json:"replaced_by,omitempty"`
}

// Usable reports whether the entry may still mint a new token pair.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

type Otp struct {
	ID        string    `gorm:"primaryKey;size:36"                                    json:"id"`
	Email     string    `gorm:"size:320;not null;uniqueIndex:idx_otps_email_purpose" json:"email"`
	Purpose   string    `gorm:"size:16;not null;uniqueIndex:idx_otps_email_purpose"  json:"purpose"`
	Code      string    `gorm:"size:6;not null"                                       json:"-"`
	ExpiresAt time.Time `gorm:"index;not null"                                        json:"expires_at"`
	Used      bool      `gorm:"not null;default:false"                                json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists the tables owned by the service, in migration order.
func All() []any {
	return []any{&User{}, &UserRole{}, &RefreshToken{}, &Otp{}}
}
