// This file implements the billing endpoints.
//
// Routes:
//   - POST /api/billing/checkout   -> Checkout
//   - POST /api/billing/portal     -> Portal
//   - POST /api/billing/cancel     -> Cancel
//   - POST /api/billing/reactivate -> Reactivate
package handler

import (
	"log/slog"
	"net/http"

	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/billing"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/service"
)

// BillingHandler serves subscription management via Stripe.
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	logger      *slog.Logger
	baseURL     string
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService billing.Service, userService service.UserService, logger *slog.Logger, baseURL string) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		logger:      logger,
		baseURL:     baseURL,
	}
}

// Checkout creates a Stripe Checkout session for upgrading to a paid plan
// and returns the URL to redirect the user to.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req struct {
		Plan     string `json:"plan"`
		Interval string `json:"interval"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	plan := domain.Plan(req.Plan)
	if plan != domain.PlanPlus && plan != domain.PlanEnterprise {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Unknown plan"))
		return
	}
	if req.Interval == "" {
		req.Interval = "monthly"
	}
	if req.Interval != "monthly" && req.Interval != "yearly" {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "Interval must be monthly or yearly"))
		return
	}

	priceID := h.billing.PriceIDForPlan(plan, req.Interval)
	if priceID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "That plan is not available"))
		return
	}

	customerID, err := h.ensureCustomer(r, user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	successURL := h.baseURL + "/settings/billing?checkout=success"
	cancelURL := h.baseURL + "/settings/billing?checkout=canceled"

	url, err := h.billing.CreateCheckoutSession(customerID, priceID, successURL, cancelURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "BillingHandler.Checkout", "Failed to start checkout"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Portal creates a Stripe Customer Portal session so the user can manage
// their subscription and payment methods.
func (h *BillingHandler) Portal(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "No billing account yet"))
		return
	}

	returnURL := h.baseURL + "/settings/billing"
	url, err := h.billing.CreatePortalSession(user.StripeCustomerID, returnURL)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "BillingHandler.Portal", "Failed to open billing portal"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Cancel sets the user's subscription to end at the current period's close.
func (h *BillingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if user.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "No active subscription"))
		return
	}

	if err := h.billing.CancelSubscription(user.SubscriptionID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "BillingHandler.Cancel", "Failed to cancel subscription"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reactivate removes a pending cancellation from the user's subscription.
func (h *BillingHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	if user.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("", "No active subscription"))
		return
	}

	if err := h.billing.ReactivateSubscription(user.SubscriptionID); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "BillingHandler.Reactivate", "Failed to reactivate subscription"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ensureCustomer returns the user's Stripe customer ID, creating the
// customer on first use.
func (h *BillingHandler) ensureCustomer(r *http.Request, user *domain.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	customerID, err := h.billing.CreateCustomer(user.Email, user.DisplayName())
	if err != nil {
		return "", domain.Internal(err, "BillingHandler.ensureCustomer", "Failed to create billing account")
	}

	if err := h.userService.UpdateStripeCustomer(r.Context(), user.ID, customerID); err != nil {
		return "", err
	}

	return customerID, nil
}
