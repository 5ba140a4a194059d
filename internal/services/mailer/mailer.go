// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package mailer delivers password reset emails. The SMTP implementation
// retries transient delivery failures with the same bounded backoff policy as
// the credential store; a terminal failure is reported to the caller, which
// owns the rollback of the pending reset token.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/authprowess/authd/internal/config"
	"github.com/sethvargo/go-retry"
	"github.com/wneessen/go-mail"
)

// Dispatcher sends the reset link out of band. The raw token appears only in
// the email body; implementations must never log or persist it.
type Dispatcher interface {
	SendResetEmail(ctx context.Context, to, rawToken string) error
}

// SMTPDispatcher sends reset emails via SMTP using go-mail.
type SMTPDispatcher struct {
	cfg         *config.SMTPConfig
	frontendURL string
	tokenTTL    time.Duration
	maxRetries  uint64
	baseDelay   time.Duration
}

// NewSMTP creates a new SMTP dispatcher. frontendURL is the base of the
// user-facing reset link; tokenTTL is only quoted in the message body.
func NewSMTP(cfg *config.SMTPConfig, frontendURL string, tokenTTL time.Duration) (*SMTPDispatcher, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	return &SMTPDispatcher{
		cfg:         cfg,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		tokenTTL:    tokenTTL,
		maxRetries:  3,
		baseDelay:   time.Second,
	}, nil
}

// SendResetEmail sends the password reset link. Delivery failures are retried
// with exponential backoff; the error returned after the budget is exhausted
// is the last transport error.
func (d *SMTPDispatcher) SendResetEmail(ctx context.Context, to, rawToken string) error {
	resetURL := fmt.Sprintf("%s/reset-password/%s", d.frontendURL, rawToken)

	msg, err := d.buildMessage(to, resetURL)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(d.baseDelay))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		// A fresh client per attempt, so a wedged connection is not reused
		client, err := d.newClient()
		if err != nil {
			return err
		}

		if err := client.DialAndSendWithContext(ctx, msg); err != nil {
			slog.Warn("mail_retry", "to", to, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sending reset email: %w", err)
	}

	slog.Info("mail_sent", "to", to)
	return nil
}

func (d *SMTPDispatcher) buildMessage(to, resetURL string) (*mail.Msg, error) {
	msg := mail.NewMsg()

	if d.cfg.FromName != "" {
		if err := msg.FromFormat(d.cfg.FromName, d.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(d.cfg.From); err != nil {
			return nil, fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject("Password Reset Request")
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"You requested a password reset. Open the link below to choose a new password:\n\n"+
			"%s\n\n"+
			"This link will expire in %d minutes.\n"+
			"If you didn't request this, please ignore this email.\n",
		resetURL, int(d.tokenTTL.Minutes())))

	return msg, nil
}

func (d *SMTPDispatcher) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(d.cfg.Port),
	}

	// Implicit TLS (SSL) for port 465, STARTTLS for others
	if d.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if d.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if d.cfg.Username != "" && d.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.cfg.Username),
			mail.WithPassword(d.cfg.Password),
		)
	}

	client, err := mail.NewClient(d.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mail client: %w", err)
	}
	return client, nil
}
