// Plan catalog. This is the single source of truth for the plan id ->
// price id -> credit count mapping; both the checkout initiator and the
// webhook reconciler resolve plans through it.
package app

import (
	"strings"

	"github.com/savestateevan/stoicforge/app/config"
	"github.com/savestateevan/stoicforge/app/models"
)

const (
	PlanBeginner = "beginner"
	PlanPro      = "pro"

	BeginnerCredits = 100
	ProCredits      = 250

	// FallbackCredits is granted when a purchase event resolves to no
	// known plan; a completed purchase must never credit zero.
	FallbackCredits = 100
)

type PlanInfo struct {
	ID      string
	PriceID string
	Credits int
	Tier    models.Plan
}

type PlanCatalog struct {
	byID    map[string]PlanInfo
	byPrice map[string]PlanInfo
}

// NewPlanCatalog binds the catalog to the configured Stripe price ids.
func NewPlanCatalog(cfg config.StripeConfig) *PlanCatalog {
	plans := []PlanInfo{
		{ID: PlanBeginner, PriceID: cfg.PriceIDBeginner, Credits: BeginnerCredits, Tier: models.PlanFree},
		{ID: PlanPro, PriceID: cfg.PriceIDPro, Credits: ProCredits, Tier: models.PlanPro},
	}

	c := &PlanCatalog{
		byID:    make(map[string]PlanInfo, len(plans)),
		byPrice: make(map[string]PlanInfo, len(plans)),
	}
	for _, p := range plans {
		c.byID[p.ID] = p
		if p.PriceID != "" {
			c.byPrice[p.PriceID] = p
		}
	}
	return c
}

// ByID resolves a plan by its identifier, case-insensitively.
func (c *PlanCatalog) ByID(id string) (PlanInfo, bool) {
	p, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return p, ok
}

// ByPriceID resolves a plan by its Stripe price id.
func (c *PlanCatalog) ByPriceID(priceID string) (PlanInfo, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}
