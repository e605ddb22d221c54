package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token verification errors. The HTTP boundary collapses all of these
// into a single 401 response; they stay distinct for logging and tests.
var (
	// ErrSignatureInvalid indicates the token signature does not match.
	ErrSignatureInvalid = errors.New("token signature is invalid")
	// ErrTokenExpired indicates the token expiry has passed.
	ErrTokenExpired = errors.New("token is expired")
	// ErrTokenMalformed indicates the token could not be decoded.
	ErrTokenMalformed = errors.New("token is malformed")
	// ErrMissingSubject indicates the token carries no subject claim.
	ErrMissingSubject = errors.New("token subject is missing")
)

// TokenCodec issues and verifies compact signed bearer tokens.
// Tokens are standard three-segment JWTs carrying at least a subject
// (username) and an absolute expiry. The codec is stateless: a token is
// valid until its expiry and cannot be revoked.
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec creates a TokenCodec signing with the given secret key.
// The algorithm identifier must name an HMAC method (HS256, HS384 or
// HS512); anything else falls back to HS256.
func NewTokenCodec(secret string, algorithm string, defaultTTL time.Duration) *TokenCodec {
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		method = jwt.SigningMethodHS256
	}

	return &TokenCodec{
		secret:     []byte(secret),
		method:     method,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithClock overrides the codec's time source. Used by tests to step
// past expiry without sleeping.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// DefaultTTL returns the configured token lifetime.
func (c *TokenCodec) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Issue signs a token asserting the given subject for ttl.
// A non-positive ttl falls back to the codec default.
func (c *TokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(c.method, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of a token and returns its
// subject. Only the codec's own signing method is accepted, so a token
// re-signed under a different algorithm never validates.
func (c *TokenCodec) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if claims.Subject == "" {
		return "", ErrMissingSubject
	}
	if claims.ExpiresAt == nil {
		return "", ErrTokenExpired
	}

	return claims.Subject, nil
}

// mapJWTError translates jwt library errors to codec sentinels.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}
