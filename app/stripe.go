package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	sub "github.com/stripe/stripe-go/v79/subscription"

	"github.com/savestateevan/stoicforge/app/config"
	"github.com/savestateevan/stoicforge/app/models"
)

// ErrInvalidPlan is returned for checkout items referencing unknown plans.
var ErrInvalidPlan = errors.New("unknown plan identifier")

// ErrInvalidQuantity is returned for checkout item quantities outside
// [1, maxCheckoutQuantity].
var ErrInvalidQuantity = errors.New("quantity out of range")

// maxCheckoutQuantity bounds client-supplied quantities so the credits
// metadata stays a small positive integer.
const maxCheckoutQuantity = 10

// InitStripe wires the Stripe API key from configuration.
func InitStripe(cfg config.StripeConfig) {
	stripe.Key = cfg.SecretKey
}

// BillingService builds provider-hosted billing flows for users.
type BillingService struct {
	store       *Store
	plans       *PlanCatalog
	frontendURL string
}

func NewBillingService(store *Store, plans *PlanCatalog, frontendURL string) *BillingService {
	return &BillingService{
		store:       store,
		plans:       plans,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

// EnsureCustomer finds or creates a Stripe Customer for the given user
// and stores its id on the users table.
func (b *BillingService) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}

	stored, err := b.store.GetStripeCustomerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if stored != "" {
		return stored, nil
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{"userId": userID},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	if err := b.store.SetStripeCustomerID(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription-mode Checkout Session for
// the given plan items. The session metadata carries the user id and the
// resolved credit count so the webhook reconciler can apply the purchase
// without a second lookup.
func (b *BillingService) CreateCheckoutSession(ctx context.Context, userID, customerID string, items []models.CheckoutItem) (*stripe.CheckoutSession, error) {
	if len(items) == 0 {
		return nil, errors.New("no items provided")
	}

	var (
		lineItems    []*stripe.CheckoutSessionLineItemParams
		totalCredits int
		primary      PlanInfo
	)
	for i, item := range items {
		plan, ok := b.plans.ByID(item.PlanID)
		if !ok {
			return nil, ErrInvalidPlan
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 || qty > maxCheckoutQuantity {
			return nil, ErrInvalidQuantity
		}
		if i == 0 {
			primary = plan
		}
		totalCredits += plan.Credits * int(qty)
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(plan.PriceID),
			Quantity: stripe.Int64(qty),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(customerID),
		ClientReferenceID:  stripe.String(userID),
		LineItems:          lineItems,
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(b.frontendURL + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(b.frontendURL + "/pricing"),
		// Stamped onto the subscription itself so lifecycle events carry
		// the user id without a customer lookup.
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": userID},
		},
		Metadata: map[string]string{
			"userId":  userID,
			"credits": strconv.Itoa(totalCredits),
			"priceId": primary.PriceID,
			"plan":    primary.ID,
		},
	}
	params.SetIdempotencyKey(uuid.NewString())

	return session.New(params)
}

// CancelSubscription cancels a subscription at the provider and returns
// the provider's cancellation record.
func (b *BillingService) CancelSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	return sub.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{})
}

// CreatePortalSession creates a Stripe Customer Portal session.
func (b *BillingService) CreatePortalSession(ctx context.Context, customerID string) (*stripe.BillingPortalSession, error) {
	return portal.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(b.frontendURL + "/profile"),
	})
}
