// This file implements the usage endpoints.
//
// Routes:
//   - GET /api/usage        -> Snapshot
//   - GET /api/usage/stream -> Stream (SSE)
package handler

import (
	"log/slog"
	"net/http"

	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/usage"
)

// UsageHandler exposes the weekly usage quota to clients.
type UsageHandler struct {
	tracker *usage.Tracker
	logger  *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(tracker *usage.Tracker, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// Snapshot returns the current usage snapshot for the authenticated user.
//
// Unmetered users (active subscription, trial, or school membership) have no
// quota to report: the response carries metered false and a null snapshot,
// and the usage store is never read on their behalf.
func (h *UsageHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if !user.IsMetered() {
		respondJSON(w, http.StatusOK, map[string]any{
			"snapshot": nil,
			"metered":  false,
		})
		return
	}

	monitor := usage.NewMonitor(h.tracker, h.logger, user)
	if err := monitor.Refresh(r.Context()); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"snapshot": monitor.State().Snapshot,
		"metered":  true,
	})
}

// Stream sends usage snapshots over SSE: one immediately, then one on every
// change to the user's usage record, until the client disconnects.
//
// Unmetered users get a single "unmetered" event and the stream ends; no
// store subscription is opened for them.
func (h *UsageHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	flusher, err := sseHeaders(w)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !user.IsMetered() {
		_ = sseEvent(w, flusher, "unmetered", map[string]any{"metered": false})
		return
	}

	ctx := r.Context()
	snapshots := make(chan domain.UsageSnapshot, 8)

	unsubscribe, err := h.tracker.SubscribeSnapshot(ctx, user.ID.String(), func(s domain.UsageSnapshot) {
		select {
		case snapshots <- s:
		case <-ctx.Done():
		}
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer unsubscribe()

	h.logger.Debug("usage stream opened", "user_id", user.ID)

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("usage stream closed", "user_id", user.ID)
			return
		case s := <-snapshots:
			if err := sseEvent(w, flusher, "usage", s); err != nil {
				return
			}
		}
	}
}
