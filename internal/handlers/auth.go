// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/authprowess/authd/internal/repository"
	"github.com/authprowess/authd/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// GenericResetResponse is sent for every forgot-password request that could be
// attempted, whether or not the account exists. It must stay byte-identical
// across both cases.
const GenericResetResponse = "If an account exists, a password reset email will be sent"

// AuthHandlers contains handlers for the credential endpoints.
type AuthHandlers struct {
	auth *auth.Service
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc *auth.Service) *AuthHandlers {
	return &AuthHandlers{auth: svc}
}

// CredentialsRequest is the request body for signup and signin.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a new account and returns a session token.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}

	creds, err := h.auth.Signup(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusCreated, creds)
}

// Signin verifies credentials and returns a session token.
func (h *AuthHandlers) Signin(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}

	creds, err := h.auth.Signin(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, creds)
}

// ForgotPasswordRequest is the request body for starting a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts the reset flow. The response never reveals whether
// the account exists.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "email is required"})
	}

	if err := h.auth.RequestReset(c.Request().Context(), req.Email); err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": GenericResetResponse})
}

// ResetPasswordRequest is the request body for completing a password reset.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword consumes the reset token from the URL and sets the new
// password.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid request body"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "password is required"})
	}

	if err := h.auth.ApplyReset(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return authError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password has been reset successfully"})
}

// authError translates the auth service's error taxonomy into a JSON response.
// Unclassified errors become opaque 500s; the detail goes to the log only.
func authError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid email format"})
	case errors.Is(err, auth.ErrWeakPassword):
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "password does not meet length requirements"})
	case errors.Is(err, auth.ErrAccountExists):
		return c.JSON(http.StatusConflict, map[string]string{"message": "account already exists"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
	case errors.Is(err, auth.ErrInvalidOrExpiredToken):
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid or expired reset token"})
	case errors.Is(err, repository.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "service temporarily unavailable"})
	default:
		slog.Error("request_failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "internal server error"})
	}
}
