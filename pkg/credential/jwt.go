package credential

import (
	"context"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of tokens minted by JWT.
const DefaultTTL = time.Hour

type jwtConfig struct {
	subject string
	issuer  string
	ttl     time.Duration
	claims  map[string]any
	clock   func() time.Time
}

// JWTOption configures JWT.
type JWTOption func(*jwtConfig)

// WithSubject sets the sub claim.
func WithSubject(sub string) JWTOption {
	return func(c *jwtConfig) { c.subject = sub }
}

// WithIssuer sets the iss claim.
func WithIssuer(iss string) JWTOption {
	return func(c *jwtConfig) { c.issuer = iss }
}

// WithTTL sets the token lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) JWTOption {
	return func(c *jwtConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClaims adds custom claims. Registered claims set by other options win.
func WithClaims(claims map[string]any) JWTOption {
	return func(c *jwtConfig) {
		maps.Copy(c.claims, claims)
	}
}

// WithClock overrides the time source used for iat and exp.
func WithClock(now func() time.Time) JWTOption {
	return func(c *jwtConfig) {
		if now != nil {
			c.clock = now
		}
	}
}

// JWT returns an authenticator that mints a fresh HS256 token on every call.
// Each token carries a unique jti, iat and exp.
func JWT(secret []byte, opts ...JWTOption) (func(context.Context) (string, error), error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	cfg := &jwtConfig{
		ttl:    DefaultTTL,
		claims: map[string]any{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	key := append([]byte(nil), secret...)

	return func(context.Context) (string, error) {
		now := cfg.clock().UTC()

		claims := jwt.MapClaims{}
		maps.Copy(claims, cfg.claims)
		claims["jti"] = uuid.NewString()
		claims["iat"] = now.Unix()
		claims["exp"] = now.Add(cfg.ttl).Unix()
		if cfg.subject != "" {
			claims["sub"] = cfg.subject
		}
		if cfg.issuer != "" {
			claims["iss"] = cfg.issuer
		}

		return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	}, nil
}
