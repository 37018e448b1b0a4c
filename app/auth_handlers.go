// Public health and authenticated identity endpoints.
package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/savestateevan/stoicforge/auth"
)

// Health is a public health check endpoint.
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Me returns the authenticated user's plan and credit balance.
func (a *API) Me(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	user, err := a.store.GetUser(c.Request.Context(), claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                 user.ID,
		"email":              user.Email,
		"credits":            user.Credits,
		"plan":               user.SubscriptionType,
		"isActiveSubscriber": user.IsActiveSubscriber,
	})
}
