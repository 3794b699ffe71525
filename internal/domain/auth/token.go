package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// AdminSubject is the only identity an admin session can carry.
	AdminSubject = "admin"
	TokenVersion = 1
)

// ErrInvalidToken is returned for any token that does not verify.
var ErrInvalidToken = errors.New("invalid session token")

// Payload is the verified content of a session token.
type Payload struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Version   int
}

type sessionClaims struct {
	Version int `json:"v"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256-signed session tokens.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// TokenOption customises a TokenCodec.
type TokenOption func(*TokenCodec)

// WithTokenClock replaces time.Now, mainly for tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec using the provided secret.
func NewTokenCodec(secret string, opts ...TokenOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	c := &TokenCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Second),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// Issue signs a token for subject that expires after ttl. Times are carried
// at second precision, so the returned payload is what Parse will yield.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, Payload, error) {
	if subject == "" {
		return "", Payload{}, errors.New("token subject is empty")
	}
	if ttl <= 0 {
		return "", Payload{}, errors.New("token ttl must be positive")
	}

	issued := c.now().Truncate(time.Second)
	payload := Payload{
		Subject:   subject,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl).Truncate(time.Second),
		Version:   TokenVersion,
	}
	claims := sessionClaims{
		Version: TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(payload.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(payload.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Payload{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, payload, nil
}

// Parse verifies the signature and expiry and returns the payload. Every
// failure is reported as ErrInvalidToken. Expiry is compared at second
// precision: a token is still valid during the second named by its exp
// claim and expires once the clock passes it.
func (c *TokenCodec) Parse(token string) (Payload, error) {
	if token == "" {
		return Payload{}, ErrInvalidToken
	}

	var claims sessionClaims
	parsed, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Payload{}, ErrInvalidToken
	}
	if claims.Version != TokenVersion || claims.Subject == "" || claims.IssuedAt == nil {
		return Payload{}, ErrInvalidToken
	}

	return Payload{
		Subject:   claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Version:   claims.Version,
	}, nil
}
