// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth composes the credential store, password hasher, reset token
// service, session issuer, and mail dispatcher into the four user-facing
// operations: Signup, Signin, RequestReset, and ApplyReset. All cross
// component error translation happens here; callers only ever see the
// sentinel errors below or repository.ErrUnavailable.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/authprowess/authd/internal/models"
	"github.com/authprowess/authd/internal/repository"
	"github.com/authprowess/authd/internal/services/mailer"
	"github.com/authprowess/authd/internal/services/password"
	"github.com/authprowess/authd/internal/services/resettoken"
	"github.com/authprowess/authd/internal/services/session"
)

var (
	// ErrInvalidEmail is returned for an identifier that is not email-shaped.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when the password fails the length policy.
	ErrWeakPassword = errors.New("password does not meet requirements")
	// ErrAccountExists is returned when the identifier is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrInvalidCredentials covers both an unknown identifier and a wrong
	// password; the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOrExpiredToken is returned when a reset token does not match
	// any pending, unexpired reset.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)

// DefaultMinPasswordLength mirrors the server-side constraint the frontend is
// expected to echo.
const DefaultMinPasswordLength = 6

// Service is the auth orchestrator.
type Service struct {
	repo        *repository.Repository
	hasher      *password.Hasher
	tokens      *resettoken.Service
	sessions    *session.Issuer
	dispatcher  mailer.Dispatcher
	minPassword int
}

// NewService wires the orchestrator. minPasswordLen <= 0 falls back to
// DefaultMinPasswordLength.
func NewService(
	repo *repository.Repository,
	hasher *password.Hasher,
	tokens *resettoken.Service,
	sessions *session.Issuer,
	dispatcher mailer.Dispatcher,
	minPasswordLen int,
) *Service {
	if minPasswordLen <= 0 {
		minPasswordLen = DefaultMinPasswordLength
	}
	return &Service{
		repo:        repo,
		hasher:      hasher,
		tokens:      tokens,
		sessions:    sessions,
		dispatcher:  dispatcher,
		minPassword: minPasswordLen,
	}
}

// Credentials is the result of a successful signup or signin.
type Credentials struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Signup creates a new account and returns a session token for it. The
// uniqueness race between the pre-check and the insert is settled by the
// store's unique index; losing the race surfaces as ErrAccountExists.
func (s *Service) Signup(ctx context.Context, email, plaintext string) (*Credentials, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.checkPasswordPolicy(plaintext); err != nil {
		return nil, err
	}

	_, err = s.repo.GetAccountByEmail(ctx, email)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking existing account: %w", err)
	}

	// The hasher runs here, before construction; the store never hashes.
	passwordHash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	token, err := s.sessions.Issue(account.Email)
	if err != nil {
		return nil, err
	}

	slog.Info("signup_success", "email", email)
	return &Credentials{Token: token, Email: account.Email}, nil
}

// Signin verifies the credentials and returns a session token. An unknown
// identifier and a wrong password produce the identical error and spend the
// same hashing work, so neither the response nor its timing reveals whether
// the account exists.
func (s *Service) Signin(ctx context.Context, email, plaintext string) (*Credentials, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		s.hasher.DummyCompare(plaintext)
		return nil, ErrInvalidCredentials
	}

	account, err := s.repo.GetAccountByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.DummyCompare(plaintext)
			slog.Warn("signin_failed", "email", normalized, "reason", "account_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	ok, err := s.hasher.Verify(plaintext, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		slog.Warn("signin_failed", "email", normalized, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(account.Email)
	if err != nil {
		return nil, err
	}

	slog.Info("signin_success", "email", normalized)
	return &Credentials{Token: token, Email: account.Email}, nil
}

// RequestReset starts the password reset flow. It returns nil for unknown
// identifiers and for delivery failures alike; the caller always renders the
// same generic response. A non-nil error means the lookup itself could not be
// attempted (or an internal step failed) and says nothing about existence.
//
// On delivery failure the pending reset fields are rolled back, so a token is
// never left live when the user cannot have received it. If the rollback
// itself fails, the error is logged and the response is still unaffected.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		// A malformed identifier is treated like an unknown one.
		return nil
	}

	account, err := s.repo.GetAccountByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("reset_requested", "known_account", false)
			return nil
		}
		return fmt.Errorf("looking up account: %w", err)
	}

	raw, hash, expiresAt, err := s.tokens.Generate()
	if err != nil {
		return err
	}

	// Overwrites any prior pending token; concurrent requests are safe and
	// only the latest token will validate.
	if err := s.repo.SetResetToken(ctx, account.ID, hash, expiresAt); err != nil {
		return fmt.Errorf("persisting reset token: %w", err)
	}

	if err := s.dispatcher.SendResetEmail(ctx, account.Email, raw); err != nil {
		slog.Error("reset_email_failed", "email", account.Email, "error", err)
		if rbErr := s.repo.ClearResetToken(ctx, account.ID); rbErr != nil {
			slog.Error("reset_rollback_failed", "email", account.Email, "error", rbErr)
		}
		return nil
	}

	slog.Info("reset_requested", "known_account", true)
	return nil
}

// ApplyReset consumes a reset token and sets a new password. The presented
// raw token is hashed before the store is queried; the raw value never
// reaches the persistence layer. The password update and the clearing of the
// reset fields are one atomic write, so a captured link cannot be replayed.
// No session token is issued; the user signs in afterwards.
func (s *Service) ApplyReset(ctx context.Context, rawToken, newPlaintext string) error {
	if err := s.checkPasswordPolicy(newPlaintext); err != nil {
		return err
	}

	now := time.Now()
	tokenHash := resettoken.HashToken(rawToken)

	account, err := s.repo.GetAccountByResetToken(ctx, tokenHash, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("looking up reset token: %w", err)
	}

	// The query already filtered on hash and expiry; revalidate against the
	// fetched row anyway before touching the password.
	if account.ResetTokenHash == nil || account.ResetTokenExpiry == nil ||
		!s.tokens.Validate(rawToken, *account.ResetTokenHash, *account.ResetTokenExpiry, now) {
		return ErrInvalidOrExpiredToken
	}

	passwordHash, err := s.hasher.Hash(newPlaintext)
	if err != nil {
		return err
	}

	if err := s.repo.UpdatePasswordAndClearResetToken(ctx, account.ID, passwordHash, tokenHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Consumed by a concurrent request between lookup and update.
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("updating password: %w", err)
	}

	slog.Info("reset_applied", "email", account.Email)
	return nil
}

// checkPasswordPolicy enforces the length bounds. The upper bound is bcrypt's
// input limit; checking it here keeps an overlong password a validation error
// instead of a hashing failure.
func (s *Service) checkPasswordPolicy(plaintext string) error {
	if len(plaintext) < s.minPassword || len(plaintext) > password.MaxLength {
		return ErrWeakPassword
	}
	return nil
}

// normalizeEmail lowercases and trims the identifier and checks that it is
// email-shaped.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
