// Shared HTTP routes for both local and Lambda execution.
package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/savestateevan/stoicforge/auth"
)

// NewRouter builds the HTTP router. The webhook route stays outside the
// auth group: it authenticates by signature, not by bearer token.
func NewRouter(api *API, verifier *auth.Verifier) *gin.Engine {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", api.Health)
	router.POST("/api/stripe/webhook", api.StripeWebhook)

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: func(c *gin.Context, claims *auth.Claims) error {
			return api.store.UpsertUserFromClaims(c.Request.Context(), claims)
		},
	}))
	protected.GET("/api/me", api.Me)
	protected.POST("/api/chat", api.Chat)
	protected.GET("/api/chat/history", api.ChatHistory)
	protected.GET("/api/credits/balance", api.CreditBalance)
	protected.POST("/api/checkout-session", api.CreateCheckoutSession)
	protected.POST("/api/cancel-subscription", api.CancelSubscription)
	protected.POST("/api/billing/portal-session", api.CreatePortalSession)
	protected.GET("/api/profile", api.GetProfile)
	protected.POST("/api/profile", api.UpdateProfile)

	return router
}
