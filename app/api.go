// Package app wires the StoicForge HTTP API: chat with Stoic mentors,
// credit balance management and Stripe billing.
package app

import (
	"context"

	"github.com/savestateevan/stoicforge/app/config"
	"github.com/savestateevan/stoicforge/app/models"
)

// generator produces one assistant reply for a persona-prompted exchange.
type generator interface {
	Complete(ctx context.Context, systemPrompt string, history []models.ChatMessage, message string) (string, error)
}

// API holds every service a handler needs. Dependencies are constructed
// in the entry point and injected here; handlers hold no globals.
type API struct {
	cfg        *config.Config
	store      *Store
	plans      *PlanCatalog
	billing    *BillingService
	chat       generator
	limiter    *RateLimiter
	alerts     Alerter
	reconciler *Reconciler
}

func NewAPI(cfg *config.Config, store *Store, limiter *RateLimiter, alerts Alerter) *API {
	plans := NewPlanCatalog(cfg.Stripe)
	return &API{
		cfg:        cfg,
		store:      store,
		plans:      plans,
		billing:    NewBillingService(store, plans, cfg.FrontendURL),
		chat:       NewChatClient(cfg.OpenAI),
		limiter:    limiter,
		alerts:     alerts,
		reconciler: NewReconciler(store, plans, alerts),
	}
}
