// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires configuration, store, services, and HTTP surface
// together and owns the process lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authprowess/authd/internal/config"
	"github.com/authprowess/authd/internal/database"
	"github.com/authprowess/authd/internal/handlers"
	"github.com/authprowess/authd/internal/middleware"
	"github.com/authprowess/authd/internal/repository"
	"github.com/authprowess/authd/internal/services/auth"
	"github.com/authprowess/authd/internal/services/mailer"
	"github.com/authprowess/authd/internal/services/password"
	"github.com/authprowess/authd/internal/services/resettoken"
	"github.com/authprowess/authd/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"frontend_url", cfg.Server.FrontendURL,
	)

	// Database (migrations run inside Open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// Store adapter
	storeOpts := repository.DefaultOptions()
	storeOpts.MaxRetries = cfg.Store.MaxRetries
	if cfg.Store.BaseDelay > 0 {
		storeOpts.BaseDelay = cfg.Store.BaseDelay
	}
	if cfg.Store.OpTimeout > 0 {
		storeOpts.OpTimeout = cfg.Store.OpTimeout
	}
	repo := repository.New(db, storeOpts)

	// Services
	sessions, err := session.NewIssuer([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create session issuer: %w", err)
	}

	tokens := resettoken.New(cfg.Auth.ResetTokenTTL)

	dispatcher, err := mailer.NewSMTP(&cfg.SMTP, cfg.Server.FrontendURL, tokens.TTL())
	if err != nil {
		return fmt.Errorf("failed to create mail dispatcher: %w", err)
	}

	authService := auth.NewService(
		repo,
		password.New(password.DefaultCost),
		tokens,
		sessions,
		dispatcher,
		cfg.Auth.MinPasswordLen,
	)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, repo, authService, sessions)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, repo *repository.Repository, authService *auth.Service, sessions *session.Issuer) {
	h := handlers.New(repo)
	authHandlers := handlers.NewAuth(authService)

	e.GET("/", h.Home)
	e.GET("/api/health", h.Health)

	api := e.Group("/api/auth")
	api.POST("/signup", authHandlers.Signup)
	api.POST("/signin", authHandlers.Signin)
	api.POST("/forgot-password", authHandlers.ForgotPassword)
	api.POST("/reset-password/:token", authHandlers.ResetPassword)
	api.GET("/me", h.Me, middleware.RequireSession(sessions))

	// Unknown API routes answer JSON, not the default HTML error page
	e.RouteNotFound("/api/*", handlers.NotFound)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
