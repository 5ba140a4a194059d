// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Account is a persisted credential record. The email is the unique account
// key; uniqueness is enforced by the store, not by callers. PasswordHash is
// never serialized. ResetTokenHash and ResetTokenExpiry are set and cleared
// together; a non-nil pair with a past expiry is still "no pending reset" as
// far as validation is concerned (lazy invalidation).
type Account struct {
	ID               int64      `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	ResetTokenHash   *string    `db:"reset_token_hash" json:"-"`
	ResetTokenExpiry *time.Time `db:"reset_token_expires_at" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPendingReset reports whether a reset token is outstanding and not yet
// expired at the given time.
func (a *Account) HasPendingReset(now time.Time) bool {
	if a.ResetTokenHash == nil || a.ResetTokenExpiry == nil {
		return false
	}
	return a.ResetTokenExpiry.After(now)
}
