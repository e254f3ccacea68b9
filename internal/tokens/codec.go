package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/auth_service/internal/domain"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Codec signs and verifies access and refresh tokens. It holds no state
// besides its configuration and is safe for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Codec)

func WithIssuer(iss string) Option {
	return func(c *Codec) { c.issuer = iss }
}

func WithTTL(access, refresh time.Duration) Option {
	return func(c *Codec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, opts ...Option) *Codec {
	c := &Codec{
		secret:     secret,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess returns a signed access token for userID and its lifetime in
// seconds.
func (c *Codec) IssueAccess(userID string) (string, int64, error) {
	token, err := c.sign(KindAccess, userID, "", c.accessTTL)
	if err != nil {
		return "", 0, err
	}
	return token, int64(c.accessTTL / time.Second), nil
}

func (c *Codec) IssueRefresh(userID, jti string) (string, error) {
	if jti == "" {
		return "", errors.New("tokens: refresh token requires a jti")
	}
	return c.sign(KindRefresh, userID, jti, c.refreshTTL)
}

func (c *Codec) sign(kind Kind, userID, jti string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("tokens: empty subject")
	}
	now := c.now()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("tokens: sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, expiry and shape. It never touches the refresh
// ledger: a valid result only proves the token was minted here and is not
// stale by its own clock.
func (c *Codec) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !tkn.Valid || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}
	switch claims.Type {
	case KindAccess:
	case KindRefresh:
		if claims.ID == "" {
			return nil, domain.ErrTokenInvalid
		}
	default:
		return nil, domain.ErrTokenInvalid
	}
	return &claims, nil
}

// Kind reports the typ of a token signed with this codec's key without
// checking expiry or issuer. It chooses a code path; it authorizes nothing.
func (c *Codec) Kind(token string) (Kind, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	return claims.Type, nil
}

func (c *Codec) IsAccessToken(token string) bool {
	claims, err := c.Verify(token)
	return err == nil && claims.Type == KindAccess
}

func (c *Codec) IsRefreshToken(token string) bool {
	claims, err := c.Verify(token)
	return err == nil && claims.Type == KindRefresh
}
