// This file implements the AI generation endpoints.
//
// Routes:
//   - POST /api/generate       -> Stream (SSE)
//   - POST /api/generate/async -> Async (background job)
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teachai/server/internal/ai"
	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/metrics"
	"github.com/teachai/server/internal/repository"
	"github.com/teachai/server/internal/service"
	"github.com/teachai/server/internal/usage"
	"github.com/teachai/server/internal/worker"
)

// MaxGenerateInputLength caps the teacher's input to the generator.
const MaxGenerateInputLength = 8000

// GenerateHandler runs AI generations, gated by the weekly usage quota for
// metered users.
type GenerateHandler struct {
	generator ai.Generator
	tools     service.ToolService
	tracker   *usage.Tracker
	queries   *repository.Queries
	logger    *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(
	generator ai.Generator,
	tools service.ToolService,
	tracker *usage.Tracker,
	queries *repository.Queries,
	logger *slog.Logger,
) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		tools:     tools,
		tracker:   tracker,
		queries:   queries,
		logger:    logger,
	}
}

type generateRequest struct {
	ToolSlug string `json:"tool_slug"`
	Input    string `json:"input"`
}

func (req *generateRequest) validate() error {
	req.ToolSlug = strings.TrimSpace(req.ToolSlug)
	req.Input = strings.TrimSpace(req.Input)

	if req.ToolSlug == "" {
		return domain.Invalid("", "Tool is required")
	}
	if req.Input == "" {
		return domain.Invalid("", "Input is required")
	}
	if len(req.Input) > MaxGenerateInputLength {
		return domain.Invalid("", "Input is too long")
	}
	return nil
}

// Stream runs a generation and streams the output over SSE.
//
// Events:
//   - "chunk": {"text": "..."} for each piece of generated text
//   - "done":  final event with token usage and the post-generation quota
//   - "error": generation failed after the stream was already open
func (h *GenerateHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tool, err := h.tools.GetBySlug(r.Context(), req.ToolSlug)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// One use is charged per attempt, before the provider call. The monitor
	// owns the plan gate: unmetered users pass through without touching the
	// usage store.
	monitor := usage.NewMonitor(h.tracker, h.logger, user)
	allowed, err := monitor.TrackUsage(r.Context(), tool.ID.String(), tool.Name)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !allowed {
		ErrorResponse(w, r, h.logger, h.quotaExhaustedError())
		return
	}

	flusher, err := sseHeaders(w)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	start := time.Now()
	result, err := h.generator.GenerateStream(r.Context(), ai.GenerateParams{
		ToolSlug:   tool.Slug,
		PromptHint: tool.PromptHint,
		Input:      req.Input,
		UserID:     user.ID.String(),
	}, func(text string) {
		_ = sseEvent(w, flusher, "chunk", map[string]string{"text": text})
	})
	metrics.GenerationDuration.WithLabelValues(tool.Slug).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(tool.Slug, "error").Inc()
		h.logger.Error("generation failed",
			"user_id", user.ID,
			"tool", tool.Slug,
			"error", err,
		)
		// Headers are already sent, deliver the failure in-band
		_ = sseEvent(w, flusher, "error", map[string]string{
			"message": generateErrorMessage(err),
		})
		return
	}

	metrics.GenerationsTotal.WithLabelValues(tool.Slug, "success").Inc()

	done := map[string]any{
		"model":         result.Usage.Model,
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
	}
	// Metered users get the post-charge quota; the monitor refreshed it when
	// the use was recorded. Unmetered users have no snapshot.
	if state := monitor.State(); state.Snapshot != nil {
		done["snapshot"] = *state.Snapshot
	}
	_ = sseEvent(w, flusher, "done", done)
}

// Async enqueues a background generation instead of streaming. The user gets
// an email when the material is ready.
func (h *GenerateHandler) Async(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := req.validate(); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	tool, err := h.tools.GetBySlug(r.Context(), req.ToolSlug)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// The quota charge happens at enqueue time, not completion time, so a
	// user can't queue more jobs than their remaining quota allows.
	monitor := usage.NewMonitor(h.tracker, h.logger, user)
	allowed, err := monitor.TrackUsage(r.Context(), tool.ID.String(), tool.Name)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !allowed {
		ErrorResponse(w, r, h.logger, h.quotaExhaustedError())
		return
	}

	job, err := worker.EnqueueGenerateResponse(r.Context(), h.queries, user.ID, tool.Slug, req.Input)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "GenerateHandler.Async", "Failed to queue generation"))
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID.String(),
		"status": "queued",
	})
}

// quotaExhaustedError is the 402 returned when the weekly quota is spent.
func (h *GenerateHandler) quotaExhaustedError() error {
	return domain.Errorf(domain.EPAYMENT, "",
		"You've used all %d free generations this week. Upgrade for unlimited access.",
		h.tracker.WeeklyLimit())
}

// generateErrorMessage maps provider errors to client-safe messages.
func generateErrorMessage(err error) string {
	switch {
	case errors.Is(err, ai.EAIRateLimit), errors.Is(err, ai.EAIUnavailable):
		return "The AI service is busy right now. Please try again in a moment."
	case errors.Is(err, ai.EAIContentPolicy):
		return "That input can't be processed. Please rephrase and try again."
	case errors.Is(err, ai.EAITimeout):
		return "The generation took too long and was cancelled. Please try again."
	default:
		return "Generation failed. Please try again."
	}
}
