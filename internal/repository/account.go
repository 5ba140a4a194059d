// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/authprowess/authd/internal/models"
)

const accountColumns = `id, email, password_hash, reset_token_hash, reset_token_expires_at, created_at, updated_at`

// CreateAccount inserts a new account and populates the caller's struct with
// the stored row. A duplicate email surfaces as ErrConflict; the unique index
// is the only arbiter when two signups race. Insert and read-back are a
// single RETURNING statement, so a retried attempt can never trip over a row
// left behind by its own earlier attempt.
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.withRetry(ctx, "create_account", func(ctx context.Context) error {
		return mapError(r.db.GetContext(ctx, account,
			`INSERT INTO accounts (email, password_hash) VALUES (?, ?)
			 RETURNING `+accountColumns,
			account.Email, account.PasswordHash))
	})
}

// GetAccountByEmail retrieves an account by its identifier, including the
// password hash. The email column is case-insensitive.
func (r *Repository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.withRetry(ctx, "get_account_by_email", func(ctx context.Context) error {
		return mapError(r.db.GetContext(ctx, &account,
			`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByResetToken retrieves the account holding the given reset token
// hash. The expiry filter is part of the query, so an expired token behaves
// exactly like an unknown one.
func (r *Repository) GetAccountByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	var account models.Account
	err := r.withRetry(ctx, "get_account_by_reset_token", func(ctx context.Context) error {
		return mapError(r.db.GetContext(ctx, &account,
			`SELECT `+accountColumns+` FROM accounts
			 WHERE reset_token_hash = ? AND reset_token_expires_at > ?`,
			tokenHash, now.UTC()))
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SetResetToken stores a pending reset token hash and expiry, overwriting any
// prior pending token. The write is a full overwrite of both fields, so a
// retried attempt cannot corrupt state.
func (r *Repository) SetResetToken(ctx context.Context, accountID int64, tokenHash string, expiresAt time.Time) error {
	return r.withRetry(ctx, "set_reset_token", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE accounts
			 SET reset_token_hash = ?, reset_token_expires_at = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			tokenHash, expiresAt.UTC(), accountID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res)
	})
}

// ClearResetToken removes a pending reset token. Both fields are cleared
// together; clearing an already-clear account is a no-op, which keeps the
// rollback path idempotent.
func (r *Repository) ClearResetToken(ctx context.Context, accountID int64) error {
	return r.withRetry(ctx, "clear_reset_token", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE accounts
			 SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			accountID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res)
	})
}

// UpdatePasswordAndClearResetToken atomically replaces the password hash and
// consumes the reset token. The WHERE clause is guarded by the token hash, so
// a token can be consumed exactly once; a second submission finds no row and
// returns ErrNotFound.
func (r *Repository) UpdatePasswordAndClearResetToken(ctx context.Context, accountID int64, passwordHash, tokenHash string) error {
	return r.withRetry(ctx, "update_password", func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE accounts
			 SET password_hash = ?, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND reset_token_hash = ?`,
			passwordHash, accountID, tokenHash)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res)
	})
}

// CountAccounts returns the total number of accounts.
func (r *Repository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.withRetry(ctx, "count_accounts", func(ctx context.Context) error {
		return mapError(r.db.GetContext(ctx, &count, `SELECT count(*) FROM accounts`))
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
