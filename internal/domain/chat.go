// Package domain contains core business types and interfaces.
//
// This file defines the chat/community message types.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength caps a single chat message body.
const MaxMessageLength = 4000

// ChatMessage is one message in a school's community channel.
type ChatMessage struct {
	ID         uuid.UUID
	SchoolID   uuid.UUID
	AuthorID   uuid.UUID
	AuthorName string // denormalized for display
	Body       string
	CreatedAt  time.Time
}

// ChatPostParams contains validated parameters for posting a message.
type ChatPostParams struct {
	SchoolID uuid.UUID
	AuthorID uuid.UUID
	Body     string
}

// Validate checks the post parameters, returning a field-level validation
// error on failure.
func (p ChatPostParams) Validate() error {
	const op = "chat.post"
	body := strings.TrimSpace(p.Body)
	if body == "" {
		return NewValidationError(op, "body", "Message body is required")
	}
	if len(body) > MaxMessageLength {
		return NewValidationError(op, "body", "Message is too long")
	}
	return nil
}
