package app

import (
	"context"
	"errors"
	"testing"

	"github.com/savestateevan/stoicforge/app/models"
)

func newTestBilling(t *testing.T) *BillingService {
	t.Helper()
	store, _ := newMockStore(t)
	return NewBillingService(store, testPlanCatalog(), "http://localhost:3000")
}

func TestCreateCheckoutSessionRejectsUnknownPlan(t *testing.T) {
	billing := newTestBilling(t)

	_, err := billing.CreateCheckoutSession(context.Background(), "user-1", "cus_1", []models.CheckoutItem{
		{PlanID: "enterprise", Quantity: 1},
	})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("error = %v, want ErrInvalidPlan", err)
	}
}

func TestCreateCheckoutSessionRejectsExcessiveQuantity(t *testing.T) {
	billing := newTestBilling(t)

	for _, qty := range []int64{maxCheckoutQuantity + 1, 1 << 40} {
		_, err := billing.CreateCheckoutSession(context.Background(), "user-1", "cus_1", []models.CheckoutItem{
			{PlanID: PlanBeginner, Quantity: qty},
		})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("quantity %d: error = %v, want ErrInvalidQuantity", qty, err)
		}
	}
}

func TestCreateCheckoutSessionRejectsNegativeQuantity(t *testing.T) {
	billing := newTestBilling(t)

	_, err := billing.CreateCheckoutSession(context.Background(), "user-1", "cus_1", []models.CheckoutItem{
		{PlanID: PlanBeginner, Quantity: -1},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("error = %v, want ErrInvalidQuantity", err)
	}
}

func TestCreateCheckoutSessionRejectsEmptyItems(t *testing.T) {
	billing := newTestBilling(t)

	if _, err := billing.CreateCheckoutSession(context.Background(), "user-1", "cus_1", nil); err == nil {
		t.Fatal("error = nil, want empty items rejection")
	}
}
