package domain

import (
	"fmt"
	"strings"
)

// Role is a flat role name attached to a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

const authorityPrefix = "ROLE_"

var knownRoles = map[Role]struct{}{
	RoleUser:  {},
	RoleAdmin: {},
}

// ParseRole accepts a role name in any case and rejects names outside the
// known set.
func ParseRole(name string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := knownRoles[r]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, name)
	}
	return r, nil
}

// Authorities converts role names to ROLE_<name> authority strings. Unknown
// names are dropped.
func Authorities(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[Role]struct{}, len(names))
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, authorityPrefix+string(r))
	}
	return out
}
