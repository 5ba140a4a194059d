// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session mints and verifies short-lived signed bearer tokens. The
// token carries only the account identifier plus issuance and expiry
// timestamps, signed HS256 with a process-wide secret.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for a bad signature or malformed token.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrExpiredToken is returned when the token is past its expiry.
	ErrExpiredToken = errors.New("session token expired")
)

// DefaultTTL is the session token lifetime.
const DefaultTTL = 24 * time.Hour

// Claims binds a session token to an account identity. The identifier lives
// in the registered Subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer mints session tokens. It never verifies tokens on the issuing path;
// Verify exists for the protected-route middleware.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. The secret comes from configuration and must
// not be empty.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl}, nil
}

// Issue mints a signed token bound to the given account identifier.
func (i *Issuer) Issue(identifier string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the account identifier it is bound to.
// An expired token yields ErrExpiredToken; any other failure (bad signature,
// wrong algorithm, garbage input) yields ErrInvalidToken.
func (i *Issuer) Verify(tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
