// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository wraps all reads and writes of persisted accounts with a
// bounded retry policy. Transient store errors (busy/locked database, a timed
// out attempt) are retried with exponential backoff; everything else fails
// immediately. Callers see stable sentinel errors instead of driver errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vinovest/sqlx"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates the unique email index.
	ErrConflict = errors.New("record already exists")
	// ErrUnavailable is returned when the store is not ready or a transient
	// failure persists past the retry budget.
	ErrUnavailable = errors.New("store unavailable")
)

// Options tunes the retry policy. The zero value is not usable; use
// DefaultOptions for production settings.
type Options struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// BaseDelay is the first backoff delay; subsequent delays double.
	BaseDelay time.Duration
	// OpTimeout bounds a single attempt, independent of the retry loop.
	OpTimeout time.Duration
	// PingTimeout bounds the readiness pre-check.
	PingTimeout time.Duration
}

// DefaultOptions mirrors the production retry budget: three retries at
// 1s/2s/4s, 15 seconds per attempt.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		BaseDelay:   time.Second,
		OpTimeout:   15 * time.Second,
		PingTimeout: time.Second,
	}
}

// Repository is the credential store adapter.
type Repository struct {
	db   *sqlx.DB
	opts Options
}

// New creates a new Repository instance.
func New(db *sqlx.DB, opts Options) *Repository {
	return &Repository{db: db, opts: opts}
}

// DB returns the underlying connection for direct access.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// withRetry runs fn under the adapter's retry policy. The readiness pre-check
// fails fast with ErrUnavailable and is never retried. Each attempt gets its
// own deadline so one hung attempt cannot consume the whole retry budget.
func (r *Repository) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(r.opts.MaxRetries, retry.NewExponential(r.opts.BaseDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.OpTimeout)
		defer cancel()

		if err := fn(attemptCtx); err != nil {
			if isTransient(err) {
				slog.Warn("store_retry", "op", op, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrUnavailable, op, attempt, err)
		}
		return err
	}
	return nil
}

// ready checks store connectivity before any attempt is made.
func (r *Repository) ready(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, r.opts.PingTimeout)
	defer cancel()

	if err := r.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// isTransient classifies errors worth retrying: a busy or locked database and
// a timed out attempt. Validation and conflict errors are not transient.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// mapError converts driver errors to repository sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
