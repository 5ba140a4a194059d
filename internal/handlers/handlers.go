// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP handlers. They are thin: bind the
// request, call the auth service, translate its errors into status codes.
package handlers

import (
	"net/http"
	"time"

	"github.com/authprowess/authd/internal/ctxkeys"
	"github.com/authprowess/authd/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains the non-auth HTTP handlers.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status and a timestamp. The store probe uses a
// cheap read, so a saturated or unreachable database is visible here before
// it surfaces as failing auth requests.
func (h *Handlers) Health(c echo.Context) error {
	status := "ok"
	code := http.StatusOK

	if h.repo != nil {
		if _, err := h.repo.CountAccounts(c.Request().Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, map[string]string{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Home returns the service banner.
func (h *Handlers) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "AuthProwess API is running",
	})
}

// Me returns the identifier of the authenticated session. The identifier is
// placed into the echo context by the session middleware.
func (h *Handlers) Me(c echo.Context) error {
	email, ok := c.Get(ctxkeys.SessionEmail).(string)
	if !ok || email == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
	}
	return c.JSON(http.StatusOK, map[string]string{"email": email})
}

// NotFound is the JSON 404 for unknown API routes.
func NotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"message": "not found"})
}
