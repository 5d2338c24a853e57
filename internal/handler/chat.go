// This file implements the school chat endpoints.
//
// Routes:
//   - GET  /api/chat -> List
//   - POST /api/chat -> Post
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/service"
)

// ChatHandler serves a school's community channel.
type ChatHandler struct {
	chat   service.ChatService
	logger *slog.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chat service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

type chatMessageResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

func toChatMessageResponse(m *domain.ChatMessage) chatMessageResponse {
	return chatMessageResponse{
		ID:         m.ID.String(),
		AuthorID:   m.AuthorID.String(),
		AuthorName: m.AuthorName,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

// List returns recent messages from the user's school channel, newest first.
// Accepts ?limit= up to the service maximum.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if user.SchoolID == nil {
		ErrorResponse(w, r, h.logger, domain.Forbidden("", "Join a school to use chat"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ErrorResponse(w, r, h.logger, domain.Invalid("", "Invalid limit"))
			return
		}
		limit = n
	}

	messages, err := h.chat.List(r.Context(), *user.SchoolID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]chatMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toChatMessageResponse(&messages[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// Post adds a message to the user's school channel.
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if user.SchoolID == nil {
		ErrorResponse(w, r, h.logger, domain.Forbidden("", "Join a school to use chat"))
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	message, err := h.chat.Post(r.Context(), domain.ChatPostParams{
		SchoolID: *user.SchoolID,
		AuthorID: user.ID,
		Body:     req.Body,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"message": toChatMessageResponse(message)})
}
