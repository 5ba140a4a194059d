// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware contains the echo middleware specific to this service.
package middleware

import (
	"net/http"
	"strings"

	"github.com/authprowess/authd/internal/ctxkeys"
	"github.com/authprowess/authd/internal/services/session"
	"github.com/labstack/echo/v4"
)

// RequireSession verifies the Authorization bearer token and stores the
// session identifier in the echo context under ctxkeys.SessionEmail.
// Missing, malformed, expired, and forged tokens all produce the same 401.
func RequireSession(issuer *session.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			}

			email, err := issuer.Verify(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			}

			c.Set(ctxkeys.SessionEmail, email)
			return next(c)
		}
	}
}
