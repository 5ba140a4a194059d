// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package password provides one-way password hashing and constant-time
// verification on top of bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor. Cost 12 lands around 100ms per hash
// on commodity hardware.
const DefaultCost = 12

// MaxLength is bcrypt's input limit in bytes; GenerateFromPassword rejects
// anything longer. Callers enforce it as part of the password policy so the
// limit surfaces as a validation error, not a hashing failure.
const MaxLength = 72

// dummyHash is compared against when no account exists, so a signin against
// an unknown identifier burns the same bcrypt work as a real verification.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Hasher hashes and verifies passwords with a configurable work factor.
type Hasher struct {
	cost int
}

// New creates a Hasher. A cost outside bcrypt's valid range falls back to
// DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of the plaintext. The result embeds its own
// salt and cost; it is never derivable back to the plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches the stored hash. A mismatch is
// (false, nil); an error is returned only for a malformed stored hash.
func (h *Hasher) Verify(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("malformed password hash: %w", err)
	}
}

// DummyCompare performs a bcrypt comparison against a fixed hash. It always
// fails; callers use it to keep the unknown-identifier path indistinguishable
// from a wrong-password one.
func (h *Hasher) DummyCompare(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
}
