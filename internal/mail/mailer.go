// Package mail sends transactional email. The only message today is the
// password reset link.
package mail

import (
	"context"
	"fmt"
	"net/url"

	gomail "github.com/wneessen/go-mail"

	"github.com/campusfeed/campusfeed/internal/logging"
)

// Sender delivers a password reset token to a user
type Sender interface {
	SendPasswordReset(ctx context.Context, to, resetToken string) error
}

// Config holds SMTP and message configuration
type Config struct {
	SMTPHost     string
	SMTPPort     int
	Username     string
	Password     string
	From         string
	ResetBaseURL string
}

// SMTPSender sends mail over authenticated SMTP
type SMTPSender struct {
	config Config
	logger *logging.Logger
}

// NewSMTPSender creates an SMTP-backed sender
func NewSMTPSender(cfg Config, logger *logging.Logger) *SMTPSender {
	return &SMTPSender{config: cfg, logger: logger}
}

// SendPasswordReset emails a reset link built from the configured base URL
func (s *SMTPSender) SendPasswordReset(ctx context.Context, to, resetToken string) error {
	resetURL := resetLink(s.config.ResetBaseURL, resetToken)

	msg := gomail.NewMsg()
	if err := msg.From(s.config.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Password Reset Request - CampusFeed")
	msg.SetBodyString(gomail.TypeTextPlain, resetTextBody(resetURL))
	msg.AddAlternativeString(gomail.TypeTextHTML, resetHTMLBody(resetURL))

	client, err := gomail.NewClient(s.config.SMTPHost,
		gomail.WithPort(s.config.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.config.Username),
		gomail.WithPassword(s.config.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	s.logger.Info("Password reset email sent", logging.WithField("to", to))
	return nil
}

// LogSender writes the reset link to the log instead of sending mail. Used
// when no SMTP host is configured, so local development works without a mail
// account.
type LogSender struct {
	resetBaseURL string
	logger       *logging.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(resetBaseURL string, logger *logging.Logger) *LogSender {
	return &LogSender{resetBaseURL: resetBaseURL, logger: logger}
}

func (s *LogSender) SendPasswordReset(ctx context.Context, to, resetToken string) error {
	s.logger.Info("Password reset requested (no SMTP configured, link logged)", logging.WithFields(map[string]interface{}{
		"to":   to,
		"link": resetLink(s.resetBaseURL, resetToken),
	}))
	return nil
}

func resetLink(baseURL, token string) string {
	return baseURL + "?token=" + url.QueryEscape(token)
}

func resetTextBody(resetURL string) string {
	return fmt.Sprintf(`Password Reset Request

We received a request to reset your CampusFeed password.

To reset your password, open the link below:
%s

This link will expire in 1 hour.

If you didn't request this, you can safely ignore this email.
`, resetURL)
}

func resetHTMLBody(resetURL string) string {
	return fmt.Sprintf(`<p>We received a request to reset your CampusFeed password.</p>
<p><a href="%s">Reset your password</a></p>
<p>This link will expire in 1 hour. If you didn't request this, you can safely ignore this email.</p>
`, resetURL)
}

var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
)
