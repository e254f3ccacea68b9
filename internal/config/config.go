package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"auth"`
	AppName     string `env:"APP_NAME"     envDefault:"User Auth App"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	HTTPAddr string `env:"AUTH_ADDR"      envDefault:":8080"`
	BasePath string `env:"AUTH_BASE_PATH" envDefault:"/api/v1/auth"`

	DBDriver    string `env:"DB_DRIVER"    envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret  string        `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer  string        `env:"JWT_ISSUER"        envDefault:"auth"`
	AccessTTL  time.Duration `env:"JWT_ACCESS_TTL"    envDefault:"15m"`
	RefreshTTL time.Duration `env:"JWT_REFRESH_TTL"   envDefault:"168h"`
	BcryptCost int           `env:"BCRYPT_COST"       envDefault:"10"`

	PasswordMinLength int           `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	OtpTTL            time.Duration `env:"OTP_TTL"             envDefault:"10m"`
	ReuseRevokesChain bool          `env:"AUTH_REUSE_REVOKES_CHAIN" envDefault:"false"`

	CookieName     string `env:"REFRESH_COOKIE_NAME"      envDefault:"refresh_token"`
	CookiePath     string `env:"REFRESH_COOKIE_PATH"`
	CookieDomain   string `env:"REFRESH_COOKIE_DOMAIN"`
	CookieSecure   bool   `env:"REFRESH_COOKIE_SECURE"    envDefault:"true"`
	CookieSameSite string `env:"REFRESH_COOKIE_SAME_SITE" envDefault:"lax"`

	KafkaBrokers   []string `env:"KAFKA_BROKERS"     envSeparator:","`
	UserEventTopic string   `env:"KAFKA_USER_TOPIC"  envDefault:"user_events"`
	MailTopic      string   `env:"KAFKA_MAIL_TOPIC"  envDefault:"mail_outbox"`
	MailQueueSize  int      `env:"MAIL_QUEUE_SIZE"   envDefault:"256"`
	MailWorkers    int      `env:"MAIL_WORKERS"      envDefault:"2"`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`
	ESIndex    string `env:"ES_AUDIT_INDEX" envDefault:"auth-audit"`

	PruneInterval  time.Duration `env:"PRUNE_INTERVAL"  envDefault:"1h"`
	PruneRetention time.Duration `env:"PRUNE_RETENTION" envDefault:"720h"`
}

// Load reads .env (when present) into the process environment and parses it.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}
	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = cfg.BasePath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must exceed JWT_ACCESS_TTL"))
	}
	if c.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be positive"))
	}
	if c.OtpTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	return errors.Join(errs...)
}

func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
