package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"github.com/savestateevan/stoicforge/app"
	"github.com/savestateevan/stoicforge/app/config"
	"github.com/savestateevan/stoicforge/auth"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start).
func init() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store, err := app.NewStore(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("failed to initialize store: %v", err)
	}

	app.InitStripe(cfg.Stripe)

	limiter := app.NewRateLimiter(cfg.Redis)
	alerts := app.NewAlerter(ctx, cfg.Alerts.QueueURL)
	api := app.NewAPI(cfg, store, limiter, alerts)

	verifier, err := auth.NewVerifier(cfg.Auth.Issuer, cfg.Auth.Audience, "")
	if err != nil {
		log.Fatalf("failed to initialize auth verifier: %v", err)
	}

	ginLambda = ginadapter.New(app.NewRouter(api, verifier))
}

// Handler is the Lambda entrypoint for API Gateway proxy integration.
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
