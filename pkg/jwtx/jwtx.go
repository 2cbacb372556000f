// Package jwtx issues and verifies the panel's HS256 access tokens.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the default lifetime for access tokens.
const DefaultAccessTokenTTL = time.Hour

var (
	// ErrTokenExpired reports a token whose signature checked out but whose
	// expiry has passed. Distinguished from ErrTokenInvalid for logging only.
	ErrTokenExpired = errors.New("jwtx: token expired")

	// ErrTokenInvalid reports a malformed, forged, or otherwise unusable token.
	ErrTokenInvalid = errors.New("jwtx: token invalid")
)

// Claims are the access-token claims. The token is stateless: there is no
// revocation list, so it remains valid until exp.
type Claims struct {
	jwt.RegisteredClaims

	// Username for the authenticated user
	Username string `json:"username,omitempty"`

	// Role of the authenticated user ("admin" or "user")
	Role string `json:"role,omitempty"`
}

// Issuer signs and verifies tokens with a fixed symmetric key.
type Issuer struct {
	key    []byte
	issuer string
}

func NewIssuer(key []byte, issuer string) (*Issuer, error) {
	if len(key) == 0 {
		return nil, errors.New("jwtx: signing key must not be empty")
	}
	return &Issuer{key: key, issuer: issuer}, nil
}

// Issue signs a claim set for the given subject with the supplied TTL.
func (i *Issuer) Issue(subject, username, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: signing failed: %w", err)
	}
	return signed, nil
}

// Verify checks the signature first, then the expiry. A forged token that
// also happens to be expired is reported as ErrTokenInvalid; ErrTokenExpired
// is only returned for tokens with a valid signature.
func (i *Issuer) Verify(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.issuer),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.key, nil
	})
	if err != nil {
		// The parser validates the signature before claims, so an expiry
		// error implies the signature was genuine.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}

	return claims, nil
}
