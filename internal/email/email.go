// Package email provides email sending functionality for the TeachAI application.
//
// This package defines an EmailService interface with an SMTP implementation
// (Mailhog for development, any authenticated SMTP relay for production).
package email

import (
	"context"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendVerificationEmail sends an email verification link to a new user.
	SendVerificationEmail(ctx context.Context, to, name, token string) error

	// SendTrialEndingEmail reminds a user that their paid-feature trial is
	// about to end.
	SendTrialEndingEmail(ctx context.Context, to, name string, daysLeft int) error

	// SendMaterialReadyEmail notifies a user that a background generation
	// finished and where to fetch the result.
	SendMaterialReadyEmail(ctx context.Context, to, name, toolName string) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@teachai.app"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "TeachAI"
)
