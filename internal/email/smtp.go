package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any standard SMTP relay (production): Uses username/password authentication
//
// Email templates are embedded in the binary and rendered with html/template.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// baseURL is the application's public URL, used for links in emails.
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendVerificationEmail sends an email verification link to a new user.
func (s *SMTPEmailService) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	htmlBody, err := s.renderTemplate("verification.html", map[string]interface{}{
		"Name":      name,
		"VerifyURL": verifyURL,
		"Year":      time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render verification email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Welcome to TeachAI! Please verify your email address by clicking the link below:

%s

This link will expire in 24 hours.

If you didn't create an account with TeachAI, you can safely ignore this email.

Thanks,
The TeachAI Team
`, name, verifyURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Verify your TeachAI account",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendTrialEndingEmail reminds a user that their trial is about to end.
func (s *SMTPEmailService) SendTrialEndingEmail(ctx context.Context, to, name string, daysLeft int) error {
	upgradeURL := fmt.Sprintf("%s/settings/billing", s.baseURL)

	htmlBody, err := s.renderTemplate("trial_ending.html", map[string]interface{}{
		"Name":       name,
		"DaysLeft":   daysLeft,
		"UpgradeURL": upgradeURL,
		"Year":       time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render trial ending email template: %w", err)
	}

	plural := "s"
	if daysLeft == 1 {
		plural = ""
	}
	textBody := fmt.Sprintf(`Hi %s,

Your TeachAI trial ends in %d day%s. After that, your account moves to the
free plan with a weekly limit on AI tool uses.

Keep unlimited access: %s

Thanks,
The TeachAI Team
`, name, daysLeft, plural, upgradeURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Your TeachAI trial is ending soon",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendMaterialReadyEmail notifies a user that a background generation finished.
func (s *SMTPEmailService) SendMaterialReadyEmail(ctx context.Context, to, name, toolName string) error {
	htmlBody, err := s.renderTemplate("material_ready.html", map[string]interface{}{
		"Name":     name,
		"ToolName": toolName,
		"Year":     time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render material ready email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

The material you requested with %s has finished generating. Sign in to view it.

Thanks,
The TeachAI Team
`, name, toolName)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Your TeachAI material is ready",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	msg := s.buildMessage(email)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Auth is only needed when credentials are configured (not for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	// Multipart message for HTML + text
	boundary := "===============TEACHAI_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ EmailService = (*SMTPEmailService)(nil)
