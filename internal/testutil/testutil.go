// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/authprowess/authd/internal/database"
	"github.com/authprowess/authd/internal/models"
	"github.com/authprowess/authd/internal/repository"
	"github.com/authprowess/authd/internal/services/password"
	"github.com/authprowess/authd/internal/services/session"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// FastRetryOptions keeps the retry budget but makes the backoff negligible,
// so tests exercising the retry path finish quickly.
func FastRetryOptions() repository.Options {
	return repository.Options{
		MaxRetries:  3,
		BaseDelay:   time.Millisecond,
		OpTimeout:   5 * time.Second,
		PingTimeout: time.Second,
	}
}

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db, FastRetryOptions())
	return db, repo
}

// NewHasher returns a hasher at bcrypt's minimum cost for fast tests.
func NewHasher() *password.Hasher {
	return password.New(bcrypt.MinCost)
}

// NewIssuer returns a session issuer with a fixed test secret.
func NewIssuer(t *testing.T) *session.Issuer {
	t.Helper()
	issuer, err := session.NewIssuer([]byte("test-session-secret"), time.Hour)
	require.NoError(t, err)
	return issuer
}

// NewTestAccount creates an account with the given credentials.
func NewTestAccount(t *testing.T, repo *repository.Repository, email, plaintext string) *models.Account {
	t.Helper()
	ctx := context.Background()

	hash, err := NewHasher().Hash(plaintext)
	require.NoError(t, err)

	account := &models.Account{Email: email, PasswordHash: hash}
	require.NoError(t, repo.CreateAccount(ctx, account))
	return account
}

// FakeDispatcher records dispatched reset emails instead of sending them.
// Setting Err makes every send fail, mimicking an unreachable mail relay.
type FakeDispatcher struct {
	mu    sync.Mutex
	Err   error
	sends []FakeSend
}

// FakeSend is one recorded dispatch.
type FakeSend struct {
	To       string
	RawToken string
}

// SendResetEmail implements mailer.Dispatcher.
func (d *FakeDispatcher) SendResetEmail(_ context.Context, to, rawToken string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.sends = append(d.sends, FakeSend{To: to, RawToken: rawToken})
	return nil
}

// Sends returns a copy of all recorded dispatches.
func (d *FakeDispatcher) Sends() []FakeSend {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]FakeSend(nil), d.sends...)
}

// LastSend returns the most recent dispatch, or an error if none happened.
func (d *FakeDispatcher) LastSend() (FakeSend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sends) == 0 {
		return FakeSend{}, errors.New("no emails dispatched")
	}
	return d.sends[len(d.sends)-1], nil
}
