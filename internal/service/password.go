package service

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/Skotchmaster/auth_service/internal/domain"
)

const (
	DefaultPasswordMinLength = 8
	passwordMaxBytes         = 72 // bcrypt refuses anything longer
)

var (
	reUpper   = regexp.MustCompile(`[A-Z]`)
	reLower   = regexp.MustCompile(`[a-z]`)
	reDigit   = regexp.MustCompile(`[0-9]`)
	reSpecial = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// PasswordPolicy is the strength rule applied on register, reset and change.
type PasswordPolicy struct {
	MinLength int
}

func (p PasswordPolicy) rules() []validation.Rule {
	min := p.MinLength
	if min <= 0 {
		min = DefaultPasswordMinLength
	}
	return []validation.Rule{
		validation.Required.Error("password is required"),
		validation.RuneLength(min, 0).
			Error(fmt.Sprintf("password must be at least %d characters", min)),
		validation.By(maxBytes(passwordMaxBytes)),
		validation.Match(reUpper).Error("password must contain at least one uppercase letter"),
		validation.Match(reLower).Error("password must contain at least one lowercase letter"),
		validation.Match(reDigit).Error("password must contain at least one digit"),
		validation.Match(reSpecial).Error("password must contain at least one special character"),
	}
}

// maxBytes bounds the encoded length; multibyte characters count once per
// byte.
func maxBytes(limit int) validation.RuleFunc {
	msg := fmt.Sprintf("password must not exceed %d bytes", limit)
	return func(value interface{}) error {
		if s, ok := value.(string); ok && len(s) > limit {
			return errors.New(msg)
		}
		return nil
	}
}

// Check returns an error matching domain.ErrValidation for weak passwords.
func (p PasswordPolicy) Check(password string) error {
	if err := validation.Validate(password, p.rules()...); err != nil {
		return domain.Validation(err)
	}
	return nil
}
