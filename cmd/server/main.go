package main

import (
	"context"
	"log"

	"github.com/savestateevan/stoicforge/app"
	"github.com/savestateevan/stoicforge/app/config"
	"github.com/savestateevan/stoicforge/auth"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := app.NewStore(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Println("Connected to Postgres")

	app.InitStripe(cfg.Stripe)

	limiter := app.NewRateLimiter(cfg.Redis)
	defer limiter.Close()

	alerts := app.NewAlerter(ctx, cfg.Alerts.QueueURL)
	api := app.NewAPI(cfg, store, limiter, alerts)

	verifier, err := auth.NewVerifier(cfg.Auth.Issuer, cfg.Auth.Audience, "")
	if err != nil && !auth.AuthDisabled() {
		log.Fatalf("failed to initialize auth verifier: %v", err)
	}

	router := app.NewRouter(api, verifier)
	if err := router.Run("0.0.0.0:" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
