package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatMessage mirrors the chat_messages table.
type ChatMessage struct {
	ID         uuid.UUID
	SchoolID   uuid.UUID
	UserID     uuid.UUID
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

type CreateChatMessageParams struct {
	SchoolID   uuid.UUID
	UserID     uuid.UUID
	AuthorName string
	Body       string
}

func (q *Queries) CreateChatMessage(ctx context.Context, arg CreateChatMessageParams) (ChatMessage, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (school_id, user_id, author_name, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, school_id, user_id, author_name, body, created_at`,
		arg.SchoolID, arg.UserID, arg.AuthorName, arg.Body,
	)
	var m ChatMessage
	err := row.Scan(&m.ID, &m.SchoolID, &m.UserID, &m.AuthorName, &m.Body, &m.CreatedAt)
	return m, err
}

// ListChatMessages returns the most recent messages for a school, newest
// first.
func (q *Queries) ListChatMessages(ctx context.Context, schoolID uuid.UUID, limit int32) ([]ChatMessage, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, school_id, user_id, author_name, body, created_at
		FROM chat_messages
		WHERE school_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		schoolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.SchoolID, &m.UserID, &m.AuthorName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
