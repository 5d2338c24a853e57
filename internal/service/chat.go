package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/repository"
)

// DefaultChatPageSize is how many messages a listing returns by default.
const DefaultChatPageSize = 50

// MaxChatPageSize caps a single listing request.
const MaxChatPageSize = 200

// ChatService manages a school's community message board.
type ChatService interface {
	// Post publishes a message to the author's school channel.
	Post(ctx context.Context, params domain.ChatPostParams) (*domain.ChatMessage, error)

	// List returns the most recent messages for a school, newest first.
	// limit <= 0 uses DefaultChatPageSize.
	List(ctx context.Context, schoolID uuid.UUID, limit int) ([]domain.ChatMessage, error)
}

type chatService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewChatService creates a new ChatService instance.
func NewChatService(queries *repository.Queries, logger *slog.Logger) ChatService {
	return &chatService{
		queries: queries,
		logger:  logger,
	}
}

func (s *chatService) Post(ctx context.Context, params domain.ChatPostParams) (*domain.ChatMessage, error) {
	const op = "ChatService.Post"

	if err := params.Validate(); err != nil {
		return nil, err
	}

	author, err := s.queries.GetUserByID(ctx, params.AuthorID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve author")
	}
	if !author.SchoolID.Valid || author.SchoolID.UUID != params.SchoolID {
		return nil, domain.Forbidden(op, "You can only post in your own school's channel")
	}

	authorName := author.Name
	if authorName == "" {
		authorName = author.Email
	}

	repoMsg, err := s.queries.CreateChatMessage(ctx, repository.CreateChatMessageParams{
		SchoolID:   params.SchoolID,
		UserID:     params.AuthorID,
		AuthorName: authorName,
		Body:       strings.TrimSpace(params.Body),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to post message")
	}

	s.logger.Debug("chat message posted", "school_id", params.SchoolID, "author_id", params.AuthorID)

	msg := repoChatMessageToDomain(repoMsg)
	return &msg, nil
}

func (s *chatService) List(ctx context.Context, schoolID uuid.UUID, limit int) ([]domain.ChatMessage, error) {
	const op = "ChatService.List"

	if limit <= 0 {
		limit = DefaultChatPageSize
	}
	if limit > MaxChatPageSize {
		limit = MaxChatPageSize
	}

	repoMsgs, err := s.queries.ListChatMessages(ctx, schoolID, int32(limit))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list messages")
	}

	messages := make([]domain.ChatMessage, len(repoMsgs))
	for i, m := range repoMsgs {
		messages[i] = repoChatMessageToDomain(m)
	}
	return messages, nil
}

func repoChatMessageToDomain(m repository.ChatMessage) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         m.ID,
		SchoolID:   m.SchoolID,
		AuthorID:   m.UserID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

var _ ChatService = (*chatService)(nil)
