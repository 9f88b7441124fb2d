package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenType is the scheme label advertised to clients.
const TokenType = "Bearer"

// Principal is the identity a parsed token asserts.
type Principal struct {
	Subject string
	Claims  Claims
}

// TokenProvider issues and validates signed HS256 tokens.
type TokenProvider struct {
	secret []byte
}

// NewTokenProvider builds a provider over the configured signing secret.
func NewTokenProvider(secret string) *TokenProvider {
	return &TokenProvider{secret: []byte(secret)}
}

type tokenClaims struct {
	Claims
	jwt.RegisteredClaims
}

// Issue signs a token for the subject carrying the given claims,
// expiring ttl from now. A non-positive ttl is a caller bug.
func (tp *TokenProvider) Issue(subject string, claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		panic(fmt.Sprintf("auth: token ttl must be positive, got %s", ttl))
	}

	now := time.Now()
	payload := &tokenClaims{
		Claims: claims,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return token.SignedString(tp.secret)
}

// Validate reports whether the token's signature verifies and its
// expiration has not passed. Malformed input is simply false.
func (tp *TokenProvider) Validate(tokenStr string) bool {
	parsed, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, tp.keyFunc)
	return err == nil && parsed.Valid
}

// Parse extracts the subject and claims without checking expiration.
// Callers needing freshness must Validate first. The signature is
// still verified, so a token signed with a different key fails here.
func (tp *TokenProvider) Parse(tokenStr string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, tp.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}

	payload, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return &Principal{Subject: payload.Subject, Claims: payload.Claims}, nil
}

// Scheme returns the token type label, e.g. "Bearer".
func (tp *TokenProvider) Scheme() string {
	return TokenType
}

func (tp *TokenProvider) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return tp.secret, nil
}
