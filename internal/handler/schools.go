// This file implements the school (tenant) endpoints.
//
// Routes:
//   - POST  /api/schools               -> Create
//   - GET   /api/schools/{id}          -> Get
//   - POST  /api/schools/{id}/join     -> Join
//   - POST  /api/schools/leave         -> Leave
//   - GET   /api/schools/{id}/members  -> Members (school admin)
//   - PATCH /api/schools/{id}          -> Update (school admin)
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/service"
)

// SchoolHandler serves school creation and membership endpoints.
type SchoolHandler struct {
	schools service.SchoolService
	logger  *slog.Logger
}

// NewSchoolHandler creates a new SchoolHandler.
func NewSchoolHandler(schools service.SchoolService, logger *slog.Logger) *SchoolHandler {
	return &SchoolHandler{
		schools: schools,
		logger:  logger,
	}
}

type schoolResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain,omitempty"`
	Plan      string `json:"plan"`
	SeatLimit int    `json:"seat_limit"`
}

func toSchoolResponse(s *domain.School) schoolResponse {
	return schoolResponse{
		ID:        s.ID.String(),
		Name:      s.Name,
		Domain:    s.Domain,
		Plan:      string(s.Plan),
		SeatLimit: s.SeatLimit,
	}
}

// pathID parses the {id} path segment as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("", "Invalid school ID")
	}
	return id, nil
}

// Create creates a school with the authenticated user as its admin.
func (h *SchoolHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		Name      string `json:"name"`
		Domain    string `json:"domain"`
		SeatLimit int    `json:"seat_limit"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	school, err := h.schools.Create(r.Context(), user.ID, domain.SchoolCreateParams{
		Name:      req.Name,
		Domain:    req.Domain,
		SeatLimit: req.SeatLimit,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{"school": toSchoolResponse(school)})
}

// Get returns a school by ID.
func (h *SchoolHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	school, err := h.schools.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"school": toSchoolResponse(school)})
}

// Join adds the authenticated user to a school.
func (h *SchoolHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.schools.Join(r.Context(), id, user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Leave removes the authenticated user from their school.
func (h *SchoolHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if err := h.schools.Leave(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Members lists a school's members. Restricted to admins of that school.
func (h *SchoolHandler) Members(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !h.canAdminister(user, id) {
		ForbiddenResponse(w, r, h.logger)
		return
	}

	members, err := h.schools.ListMembers(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	type memberResponse struct {
		UserID   string    `json:"user_id"`
		Email    string    `json:"email"`
		Name     string    `json:"name"`
		Role     string    `json:"role"`
		JoinedAt time.Time `json:"joined_at"`
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:   m.UserID.String(),
			Email:    m.Email,
			Name:     m.Name,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": out})
}

// Update changes a school's name, domain, or seat limit. Restricted to
// admins of that school.
func (h *SchoolHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	id, err := pathID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !h.canAdminister(user, id) {
		ForbiddenResponse(w, r, h.logger)
		return
	}

	var req struct {
		Name      string `json:"name"`
		Domain    string `json:"domain"`
		SeatLimit int    `json:"seat_limit"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err = h.schools.Update(r.Context(), id, domain.SchoolCreateParams{
		Name:      req.Name,
		Domain:    req.Domain,
		SeatLimit: req.SeatLimit,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// canAdminister reports whether the user may manage the given school.
// Site admins can manage any school; school admins only their own.
func (h *SchoolHandler) canAdminister(user *domain.User, schoolID uuid.UUID) bool {
	if user.Role == domain.RoleSiteAdmin {
		return true
	}
	return user.Role == domain.RoleSchoolAdmin && user.SchoolID != nil && *user.SchoolID == schoolID
}
