package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/auth_service/internal/domain"
)

func TestPasswordPolicy(t *testing.T) {
	p := PasswordPolicy{MinLength: 8}

	tests := []struct {
		name     string
		password string
		msg      string
	}{
		{name: "empty", password: "", msg: "password is required"},
		{name: "too short", password: "Ab1!", msg: "password must be at least 8 characters"},
		{name: "too long", password: "Aa1!" + strings.Repeat("x", 69), msg: "password must not exceed 72 bytes"},
		{name: "multibyte too long", password: "Aa1!" + strings.Repeat("é", 60), msg: "password must not exceed 72 bytes"},
		{name: "no upper", password: "abcdefg1!", msg: "uppercase"},
		{name: "no lower", password: "ABCDEFG1!", msg: "lowercase"},
		{name: "no digit", password: "Abcdefgh!", msg: "digit"},
		{name: "no special", password: "Abcdefg12", msg: "special character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Check(tt.password)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Contains(t, domain.ValidationMessage(err), tt.msg)
		})
	}
}

func TestPasswordPolicy_AcceptsEverySpecialCharacter(t *testing.T) {
	p := PasswordPolicy{}
	for _, ch := range `!@#$%^&*()_+-=[]{};':"\|,.<>/?` {
		require.NoError(t, p.Check("Abcdefg1"+string(ch)), "special %q", ch)
	}
	assert.Error(t, p.Check("Abcdefg1~"))
}

func TestPasswordPolicy_CustomMinLength(t *testing.T) {
	p := PasswordPolicy{MinLength: 12}
	require.Error(t, p.Check("Abcdefg1!"))
	require.NoError(t, p.Check("Abcdefghij1!"))
}

func TestPasswordPolicy_ByteLimitMatchesHasher(t *testing.T) {
	p := PasswordPolicy{}
	require.NoError(t, p.Check("Aa1!"+strings.Repeat("é", 34)))
	require.Error(t, p.Check("Aa1!"+strings.Repeat("é", 35)))
}
