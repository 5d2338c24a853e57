// This file implements authentication and account endpoints.
//
// Routes:
//   - POST /api/auth/register          -> Register
//   - POST /api/auth/login             -> Login
//   - POST /api/auth/logout            -> Logout
//   - GET  /api/auth/me                -> Me
//   - POST /api/auth/verify-email      -> VerifyEmail
//   - POST /api/auth/resend-verification -> ResendVerification
//   - PATCH /api/auth/profile          -> UpdateProfile
//   - POST /api/auth/password          -> ChangePassword
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/email"
	"github.com/teachai/server/internal/repository"
	"github.com/teachai/server/internal/service"
	"github.com/teachai/server/internal/session"
	"github.com/teachai/server/internal/worker"
)

// trialNoticeLeadTime is how long before trial expiry the reminder email goes
// out.
const trialNoticeLeadTime = 3 * 24 * time.Hour

// AuthHandler handles authentication and account endpoints.
type AuthHandler struct {
	userService   service.UserService
	schoolService service.SchoolService
	emailService  email.EmailService
	queries       *repository.Queries
	logger        *slog.Logger
	isSecure      bool
}

// NewAuthHandler creates a new AuthHandler.
// emailService may be nil when SMTP is not configured (emails are skipped).
func NewAuthHandler(
	userService service.UserService,
	schoolService service.SchoolService,
	emailService email.EmailService,
	queries *repository.Queries,
	logger *slog.Logger,
	isSecure bool,
) *AuthHandler {
	return &AuthHandler{
		userService:   userService,
		schoolService: schoolService,
		emailService:  emailService,
		queries:       queries,
		logger:        logger,
		isSecure:      isSecure,
	}
}

// userResponse is the JSON shape for user data in API responses.
type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	SchoolID      *string    `json:"school_id,omitempty"`
	Role          string     `json:"role"`
	Plan          string     `json:"plan"`
	EffectivePlan string     `json:"effective_plan"`
	Metered       bool       `json:"metered"`
	TrialEndsAt   *time.Time `json:"trial_ends_at,omitempty"`
	EmailVerified bool       `json:"email_verified"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		Role:          string(u.Role),
		Plan:          string(u.Plan),
		EffectivePlan: string(u.EffectivePlan()),
		Metered:       u.IsMetered(),
		TrialEndsAt:   u.TrialEndsAt,
		EmailVerified: u.EmailVerified,
	}
	if u.SchoolID != nil {
		id := u.SchoolID.String()
		resp.SchoolID = &id
	}
	return resp
}

// Register creates a new account, starts the trial, and sends the
// verification email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.sendVerification(r, user)

	// Schedule the trial expiry reminder
	if user.TrialEndsAt != nil {
		sendAt := user.TrialEndsAt.Add(-trialNoticeLeadTime)
		if _, err := worker.EnqueueTrialNotice(r.Context(), h.queries, user.ID, sendAt); err != nil {
			h.logger.Warn("failed to schedule trial notice", "user_id", user.ID, "error", err)
		}
	}

	// Suggest a school whose domain matches the email, if any
	var suggestedSchool *domain.School
	if school, err := h.schoolService.SuggestForEmail(r.Context(), user.Email); err == nil {
		suggestedSchool = school
	}

	resp := map[string]any{"user": toUserResponse(user)}
	if suggestedSchool != nil {
		resp["suggested_school"] = map[string]string{
			"id":   suggestedSchool.ID.String(),
			"name": suggestedSchool.Name,
		}
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Login authenticates a user and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, result.Token, h.isSecure)
	respondJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(result.User)})
}

// Logout invalidates the session and clears the cookie. Always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		_ = h.userService.Logout(r.Context(), cookie.Value)
	}
	session.ClearCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}

// VerifyEmail validates a verification token.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.userService.VerifyEmail(r.Context(), req.Token); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// ResendVerification sends a fresh verification email.
// Responds with the same generic message regardless of outcome so the
// endpoint can't be used to probe which emails are registered.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.ResendVerificationEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Info("verification resend skipped", "error", err)
	} else if h.emailService != nil {
		to := strings.ToLower(strings.TrimSpace(req.Email))
		if err := h.emailService.SendVerificationEmail(r.Context(), to, to, result.Token); err != nil {
			h.logger.Error("failed to send verification email", "email", to, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "If that address is registered and unverified, a new verification email is on its way.",
	})
}

// UpdateProfile updates the authenticated user's profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err := h.userService.UpdateProfile(r.Context(), domain.ProfileUpdateParams{
		UserID: user.ID,
		Name:   req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ChangePassword changes the authenticated user's password and invalidates
// all sessions, including the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	err := h.userService.ChangePassword(r.Context(), domain.PasswordChangeParams{
		UserID:          user.ID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	session.ClearCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// sendVerification creates a token and emails the verification link.
// Failures are logged, not surfaced: registration already succeeded.
func (h *AuthHandler) sendVerification(r *http.Request, user *domain.User) {
	if h.emailService == nil {
		return
	}

	result, err := h.userService.CreateEmailVerificationToken(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to create verification token", "user_id", user.ID, "error", err)
		return
	}

	if err := h.emailService.SendVerificationEmail(r.Context(), user.Email, user.DisplayName(), result.Token); err != nil {
		h.logger.Error("failed to send verification email", "user_id", user.ID, "error", err)
	}
}
