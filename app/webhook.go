// Webhook reconciliation. Stripe events arrive at-least-once and in no
// particular order; each handled event is applied independently, with
// credit grants deduplicated through the processed_events ledger.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/savestateevan/stoicforge/app/models"
)

// ErrUnresolvedUser means an event could not be attributed to any user.
// The caller acknowledges it to the provider; redelivering an event that
// carries no usable identity can never succeed.
var ErrUnresolvedUser = errors.New("could not resolve event to a user")

// EventKind is the closed set of webhook event kinds this service
// handles. Everything else is EventUnhandled and intentionally ignored.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventCheckoutCompleted
	EventSubscriptionCreated
	EventSubscriptionUpdated
	EventSubscriptionDeleted
)

func classifyEvent(t stripe.EventType) EventKind {
	switch t {
	case "checkout.session.completed":
		return EventCheckoutCompleted
	case "customer.subscription.created":
		return EventSubscriptionCreated
	case "customer.subscription.updated":
		return EventSubscriptionUpdated
	case "customer.subscription.deleted":
		return EventSubscriptionDeleted
	default:
		return EventUnhandled
	}
}

// Reconciler applies verified Stripe events to the credit ledger and the
// subscription side table.
type Reconciler struct {
	store    *Store
	plans    *PlanCatalog
	alerts   Alerter
	handlers map[EventKind]func(ctx context.Context, event stripe.Event) error
}

func NewReconciler(store *Store, plans *PlanCatalog, alerts Alerter) *Reconciler {
	r := &Reconciler{
		store:  store,
		plans:  plans,
		alerts: alerts,
	}
	r.handlers = map[EventKind]func(context.Context, stripe.Event) error{
		EventCheckoutCompleted:   r.handleCheckoutCompleted,
		EventSubscriptionCreated: r.handleSubscriptionCreated,
		EventSubscriptionUpdated: r.handleSubscriptionUpdated,
		EventSubscriptionDeleted: r.handleSubscriptionDeleted,
	}
	return r
}

// Process routes one verified event through the dispatch table.
func (r *Reconciler) Process(ctx context.Context, event stripe.Event) error {
	handler, ok := r.handlers[classifyEvent(event.Type)]
	if !ok {
		// Intentionally ignore unhandled events.
		return nil
	}
	return handler(ctx, event)
}

// handleCheckoutCompleted is the one canonical credit-granting path: a
// completed checkout credits the purchased plan's amount exactly once
// per event id, then best-effort records the subscription identifiers.
func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("checkout session unmarshal failed: %w", err)
	}

	userID, err := r.resolveCheckoutUser(ctx, &sess)
	if err != nil {
		return err
	}

	delta := r.resolveCreditDelta(&sess)

	claimed, err := r.store.MarkEventProcessed(ctx, event.ID, string(event.Type))
	if err != nil {
		return fmt.Errorf("idempotency ledger check failed: %w", err)
	}
	if !claimed {
		log.Printf("stripe webhook duplicate delivery event=%s; acknowledged without effect", event.ID)
		return nil
	}

	newBalance, err := r.store.Credit(ctx, userID, delta)
	if err != nil {
		// Release the claim so the provider's redelivery can reapply.
		if unmarkErr := r.store.UnmarkEventProcessed(ctx, event.ID); unmarkErr != nil {
			log.Printf("failed to release event claim event=%s: %v", event.ID, unmarkErr)
		}
		return fmt.Errorf("credit application failed user=%s delta=%d: %w", userID, delta, err)
	}
	log.Printf("stripe webhook credited user=%s delta=%d balance=%d event=%s", userID, delta, newBalance, event.ID)

	// Subscription metadata is best effort: the credit has been applied
	// and is not rolled back if this fails.
	sub := models.Subscription{
		UserID:           userID,
		StripeCustomerID: customerID(sess.Customer),
		StripePriceID:    sess.Metadata["priceId"],
	}
	if sess.Subscription != nil {
		sub.StripeSubscriptionID = sess.Subscription.ID
	}
	if err := r.store.UpsertSubscription(ctx, sub); err != nil {
		log.Printf("subscription upsert failed after credit user=%s event=%s: %v", userID, event.ID, err)
		r.alerts.Alert(ctx, AlertPartialReconcile,
			"credits applied but subscription record not updated",
			map[string]string{"event": event.ID, "user": userID})
	}
	return nil
}

// handleSubscriptionCreated is metadata-only: crediting happens on
// checkout completion, never here, so a purchase cannot be granted twice.
func (r *Reconciler) handleSubscriptionCreated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("subscription unmarshal failed: %w", err)
	}

	userID, ok := r.resolveSubscriptionUser(ctx, &sub)
	if !ok {
		log.Printf("stripe webhook warning: subscription.created with no resolvable user event=%s sub=%s", event.ID, sub.ID)
		return nil
	}

	if err := r.upsertFromSubscription(ctx, userID, &sub); err != nil {
		return err
	}
	return r.applySubscriptionStatus(ctx, userID, &sub, event.ID)
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("subscription unmarshal failed: %w", err)
	}

	userID, ok := r.resolveSubscriptionUser(ctx, &sub)
	if !ok {
		log.Printf("stripe webhook warning: subscription.updated with no resolvable user event=%s sub=%s", event.ID, sub.ID)
		return nil
	}

	if err := r.upsertFromSubscription(ctx, userID, &sub); err != nil {
		return err
	}
	return r.applySubscriptionStatus(ctx, userID, &sub, event.ID)
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("subscription unmarshal failed: %w", err)
	}

	userID, ok := r.resolveSubscriptionUser(ctx, &sub)
	if !ok {
		log.Printf("stripe webhook warning: subscription.deleted with no resolvable user event=%s sub=%s", event.ID, sub.ID)
		return nil
	}

	err := r.store.SetSubscriptionStatus(ctx, userID, false, models.PlanFree)
	if errors.Is(err, sql.ErrNoRows) {
		log.Printf("stripe webhook warning: subscription.deleted for unknown user=%s event=%s", userID, event.ID)
		return nil
	}
	return err
}

// resolveCheckoutUser attributes a checkout session to a user: explicit
// metadata first, then the client reference, then a reverse lookup from
// the Stripe customer id.
func (r *Reconciler) resolveCheckoutUser(ctx context.Context, sess *stripe.CheckoutSession) (string, error) {
	if id := sess.Metadata["userId"]; id != "" {
		return id, nil
	}
	if sess.ClientReferenceID != "" {
		return sess.ClientReferenceID, nil
	}
	userID, err := r.store.FindUserByStripeCustomer(ctx, customerID(sess.Customer))
	if err == nil {
		return userID, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUnresolvedUser
	}
	return "", err
}

// resolveCreditDelta determines how many credits a completed checkout
// grants: explicit metadata count, then the plan catalog by price id,
// then the fallback constant. The result is always positive.
func (r *Reconciler) resolveCreditDelta(sess *stripe.CheckoutSession) int {
	if raw := sess.Metadata["credits"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
		log.Printf("stripe webhook: ignoring malformed credits metadata %q", raw)
	}
	if plan, ok := r.plans.ByPriceID(sess.Metadata["priceId"]); ok {
		return plan.Credits
	}
	log.Printf("stripe webhook: no credit count resolvable for session=%s, using fallback %d", sess.ID, FallbackCredits)
	return FallbackCredits
}

// resolveSubscriptionUser attributes a subscription event to a user:
// checkout-stamped metadata first, then a reverse lookup from the Stripe
// customer id recorded at checkout time.
func (r *Reconciler) resolveSubscriptionUser(ctx context.Context, sub *stripe.Subscription) (string, bool) {
	if id := sub.Metadata["userId"]; id != "" {
		return id, true
	}
	userID, err := r.store.FindUserByStripeCustomer(ctx, customerID(sub.Customer))
	if err != nil {
		return "", false
	}
	return userID, true
}

func (r *Reconciler) upsertFromSubscription(ctx context.Context, userID string, sub *stripe.Subscription) error {
	rec := models.Subscription{
		UserID:               userID,
		StripeCustomerID:     customerID(sub.Customer),
		StripeSubscriptionID: sub.ID,
	}
	// Stripe may omit the items object entirely on lifecycle events.
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		rec.StripePriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		rec.StripeCurrentPeriodEnd = &t
	}
	return r.store.UpsertSubscription(ctx, rec)
}

func (r *Reconciler) applySubscriptionStatus(ctx context.Context, userID string, sub *stripe.Subscription, eventID string) error {
	active := sub.Status == stripe.SubscriptionStatusActive
	plan := models.PlanFree
	if active {
		plan = models.PlanPro
	}
	err := r.store.SetSubscriptionStatus(ctx, userID, active, plan)
	if errors.Is(err, sql.ErrNoRows) {
		log.Printf("stripe webhook warning: subscription status for unknown user=%s event=%s", userID, eventID)
		return nil
	}
	return err
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
