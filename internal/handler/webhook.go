// This file implements the Stripe webhook endpoint.
//
// Routes:
//   - POST /api/webhooks/stripe -> HandleStripe
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/teachai/server/internal/billing"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/service"
)

// maxWebhookBody caps Stripe webhook payloads at 64 KB.
const maxWebhookBody = 64 << 10

// webhookProcessTimeout bounds async webhook processing.
const webhookProcessTimeout = 30 * time.Second

// WebhookHandler processes Stripe events that change subscription state.
type WebhookHandler struct {
	billing     billing.Service
	userService service.UserService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billingService billing.Service, userService service.UserService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		userService: userService,
		logger:      logger,
	}
}

// HandleStripe verifies and processes a Stripe webhook event.
//
// Stripe retries on non-2xx responses, so the handler acknowledges quickly
// and processes the event in the background. A fresh context is used because
// the request context dies when the response is written.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookProcessTimeout)
		defer cancel()

		if err := h.processEvent(ctx, event); err != nil {
			h.logger.Error("failed to process webhook event",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err,
			)
		}
	}()

	w.WriteHeader(http.StatusOK)
}

// processEvent dispatches one verified Stripe event.
func (h *WebhookHandler) processEvent(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		return h.syncSubscription(ctx, &sub)

	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		if sess.Subscription == nil {
			return nil
		}
		// The checkout object carries only the subscription ID, fetch the
		// full subscription to get price and status
		sub, err := h.billing.GetSubscription(sess.Subscription.ID)
		if err != nil {
			return err
		}
		return h.syncSubscription(ctx, sub)

	default:
		h.logger.Debug("ignoring webhook event", "event_type", event.Type)
		return nil
	}
}

// syncSubscription updates the local user record to match a Stripe
// subscription.
func (h *WebhookHandler) syncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return nil
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		// A customer we don't know about; nothing to sync
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Warn("webhook for unknown customer", "customer_id", sub.Customer.ID)
			return nil
		}
		return err
	}

	status := subscriptionStatus(sub.Status)
	plan := domain.PlanFree
	subscriptionID := sub.ID

	if status == domain.SubscriptionStatusActive || status == domain.SubscriptionStatusTrialing {
		plan = h.planFromSubscription(sub)
	} else {
		subscriptionID = ""
	}

	if err := h.userService.UpdateSubscription(ctx, user.ID, string(status), string(plan), subscriptionID); err != nil {
		return err
	}

	h.logger.Info("subscription synced",
		"user_id", user.ID,
		"status", status,
		"plan", plan,
	)
	return nil
}

// planFromSubscription resolves the plan from the subscription's first price.
func (h *WebhookHandler) planFromSubscription(sub *stripe.Subscription) domain.Plan {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if plan := h.billing.PlanForPriceID(item.Price.ID); plan != "" {
				return plan
			}
		}
	}
	h.logger.Warn("subscription has no recognized price", "subscription_id", sub.ID)
	return domain.PlanFree
}

// subscriptionStatus maps Stripe statuses onto the local lifecycle.
func subscriptionStatus(s stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusNone
	}
}
