// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package resettoken generates and validates single-use password reset
// tokens. The raw token is shown to the user exactly once (in the reset
// email); only its SHA-256 digest is ever persisted.
package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	// TokenLength is the number of random bytes per token (256 bits).
	TokenLength = 32
	// DefaultTTL is how long a reset token stays valid.
	DefaultTTL = 10 * time.Minute
)

// Service generates and validates reset tokens with a fixed validity window.
type Service struct {
	ttl time.Duration
}

// New creates a Service. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{ttl: ttl}
}

// TTL returns the configured validity window.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Generate draws a new token from crypto/rand.
// Returns (raw token, SHA-256 hash for storage, expiry time, error).
func (s *Service) Generate() (string, string, time.Time, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generating random bytes: %w", err)
	}

	raw := hex.EncodeToString(bytes)
	hash := HashToken(raw)
	expiresAt := time.Now().Add(s.ttl)

	return raw, hash, expiresAt, nil
}

// HashToken computes the SHA-256 hash of a raw token.
func HashToken(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:])
}

// Validate reports whether the presented raw token matches the stored hash
// and the stored expiry is still in the future. Missing stored fields, a
// digest mismatch, or expiry all return false; Validate never errors. The
// digest comparison avoids data-dependent branching.
func (s *Service) Validate(raw, storedHash string, storedExpiry, now time.Time) bool {
	if storedHash == "" || storedExpiry.IsZero() {
		return false
	}
	if !storedExpiry.After(now) {
		return false
	}

	digest := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedHash)) == 1
}
