// This file implements the tool catalog endpoints.
//
// Routes:
//   - GET  /api/tools               -> List
//   - GET  /api/tools/{slug}        -> Get
//   - POST /api/tools               -> Create (site admin)
//   - POST /api/tools/{slug}/image  -> UploadImage (site admin)
package handler

import (
	"log/slog"
	"net/http"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/service"
)

// ToolHandler serves the AI-tool catalog.
type ToolHandler struct {
	tools  service.ToolService
	media  service.MediaService
	logger *slog.Logger
}

// NewToolHandler creates a new ToolHandler.
// media may be nil when no storage backend is configured (image uploads and
// URLs are disabled).
func NewToolHandler(tools service.ToolService, media service.MediaService, logger *slog.Logger) *ToolHandler {
	return &ToolHandler{
		tools:  tools,
		media:  media,
		logger: logger,
	}
}

// toolResponse is the JSON shape for catalog entries.
type toolResponse struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url,omitempty"`
	Featured    bool   `json:"featured"`
}

func (h *ToolHandler) toToolResponse(r *http.Request, t *domain.Tool) toolResponse {
	resp := toolResponse{
		ID:          t.ID.String(),
		Slug:        t.Slug,
		Name:        t.Name,
		Description: t.Description,
		Category:    string(t.Category),
		Featured:    t.Featured,
	}
	if t.ImageKey != "" && h.media != nil {
		url, err := h.media.ImageURL(r.Context(), t.ImageKey)
		if err != nil {
			h.logger.Warn("failed to resolve tool image URL", "tool", t.Slug, "error", err)
		} else {
			resp.ImageURL = url
		}
	}
	return resp
}

// List returns the tool catalog, optionally filtered by ?category=.
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		tools []domain.Tool
		err   error
	)

	if category := r.URL.Query().Get("category"); category != "" {
		tools, err = h.tools.ListByCategory(r.Context(), category)
	} else {
		tools, err = h.tools.List(r.Context())
	}
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]toolResponse, 0, len(tools))
	for i := range tools {
		out = append(out, h.toToolResponse(r, &tools[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{"tools": out})
}

// Get returns a single catalog entry by slug.
func (h *ToolHandler) Get(w http.ResponseWriter, r *http.Request) {
	tool, err := h.tools.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"tool": h.toToolResponse(r, tool)})
}

// Create adds a new tool to the catalog.
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
		PromptHint  string `json:"prompt_hint"`
		Featured    bool   `json:"featured"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tool, err := h.tools.Create(r.Context(), domain.ToolCreateParams{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
		Category:    domain.ToolCategory(req.Category),
		PromptHint:  req.PromptHint,
		Featured:    req.Featured,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"tool": h.toToolResponse(r, tool)})
}

// UploadImage accepts a multipart image upload for a tool's catalog card.
func (h *ToolHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		err := domain.Errorf(domain.EINTERNAL, "", "File storage is not configured")
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tool, err := h.tools.GetBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImageUploadSize)
	if err := r.ParseMultipartForm(service.MaxImageUploadSize); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Invalid upload"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Image file is required"))
		return
	}
	defer file.Close()

	key, err := h.media.UploadToolImage(
		r.Context(),
		tool.ID,
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"image_key": key})
}
