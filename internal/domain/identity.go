package domain

import (
	"slices"
	"strings"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID      string
	Email       string
	Roles       []string
	Authorities []string
}

func (i Identity) HasAuthority(a string) bool {
	return slices.Contains(i.Authorities, a)
}

// NormalizeEmail trims and lowercases an email address. Every lookup and
// write goes through it so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
