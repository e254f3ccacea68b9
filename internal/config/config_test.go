package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "/api/v1/auth", cfg.BasePath)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 10*time.Minute, cfg.OtpTTL)
	assert.Equal(t, 8, cfg.PasswordMinLength)
	assert.Equal(t, "refresh_token", cfg.CookieName)
	assert.Equal(t, cfg.BasePath, cfg.CookiePath)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, http.SameSiteLaxMode, cfg.SameSite())
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", secret)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/auth?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("REFRESH_COOKIE_PATH", "/")
	t.Setenv("REFRESH_COOKIE_SAME_SITE", "strict")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, "/", cfg.CookiePath)
	assert.Equal(t, http.SameSiteStrictMode, cfg.SameSite())
}

func TestParse_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Parse()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{
		JWTSecret:         "short",
		AccessTTL:         time.Hour,
		RefreshTTL:        time.Minute,
		PasswordMinLength: 8,
		OtpTTL:            time.Minute,
		DBDriver:          "postgres",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "JWT_REFRESH_TTL")
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg = Config{
		JWTSecret:         secret,
		AccessTTL:         time.Minute,
		RefreshTTL:        time.Hour,
		PasswordMinLength: 8,
		OtpTTL:            time.Minute,
		DBDriver:          "mysql",
	}
	assert.ErrorContains(t, cfg.Validate(), "unsupported DB_DRIVER")
}
