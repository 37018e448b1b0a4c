// Stripe billing endpoints: checkout, cancellation, portal and webhook.
package app

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/savestateevan/stoicforge/app/models"
	"github.com/savestateevan/stoicforge/auth"
)

// CreateCheckoutSession starts a Stripe Checkout Session for the
// authenticated user's selected plan items.
func (a *API) CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no items provided"})
		return
	}

	email := readStringClaim(claims.Raw, "email")
	customerID, err := a.billing.EnsureCustomer(c.Request.Context(), claims.Subject, email)
	if err != nil {
		log.Printf("ensure customer failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	sess, err := a.billing.CreateCheckoutSession(c.Request.Context(), claims.Subject, customerID, req.Items)
	if err != nil {
		if errors.Is(err, ErrInvalidPlan) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan"})
			return
		}
		if errors.Is(err, ErrInvalidQuantity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
			return
		}
		log.Printf("checkout session failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{SessionID: sess.ID, URL: sess.URL})
}

// CancelSubscription cancels a subscription at the provider on the
// user's behalf and returns the provider's cancellation record.
func (a *API) CancelSubscription(c *gin.Context) {
	if _, ok := auth.ClaimsFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req models.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	canceled, err := a.billing.CancelSubscription(c.Request.Context(), req.SubscriptionID)
	if err != nil {
		log.Printf("subscription cancel failed sub=%s: %v", req.SubscriptionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel subscription"})
		return
	}

	c.JSON(http.StatusOK, canceled)
}

// CreatePortalSession creates a Stripe Customer Portal session for the
// authenticated user.
func (a *API) CreatePortalSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	customerID, err := a.store.GetStripeCustomerID(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("portal lookup failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load customer"})
		return
	}
	if customerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no billing customer for user"})
		return
	}

	sess, err := a.billing.CreatePortalSession(c.Request.Context(), customerID)
	if err != nil {
		log.Printf("portal session failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}

// StripeWebhook receives payment events. Every branch converts to an
// HTTP response; an escaped panic or 5xx would make Stripe redeliver the
// event indefinitely.
func (a *API) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	endpointSecret := a.cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		a.alerts.Alert(c.Request.Context(), AlertSignatureInvalid,
			"webhook signature verification failed",
			map[string]string{"remote": c.ClientIP()})
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	if err := a.reconciler.Process(c.Request.Context(), event); err != nil {
		if errors.Is(err, ErrUnresolvedUser) {
			// Acknowledged deliberately: Stripe retries on non-2xx and
			// an event with no usable identity can never succeed.
			log.Printf("stripe webhook unresolved user event=%s type=%s", event.ID, event.Type)
			a.alerts.Alert(c.Request.Context(), AlertUnresolvedUser,
				"webhook event could not be attributed to a user",
				map[string]string{"event": event.ID, "type": string(event.Type)})
			c.JSON(http.StatusOK, gin.H{"status": "user unresolved"})
			return
		}
		log.Printf("stripe webhook processing failed event=%s type=%s: %v", event.ID, event.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
