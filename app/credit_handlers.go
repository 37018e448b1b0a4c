// Credit balance endpoint.
package app

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/savestateevan/stoicforge/auth"
)

// CreditBalance returns the user's balance, provisioning the user row on
// first touch so a brand-new user sees {credits: 0} rather than an error.
func (a *API) CreditBalance(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	email := readStringClaim(claims.Raw, "email")
	credits, err := a.store.GetOrCreateCredits(c.Request.Context(), claims.Subject, email)
	if err != nil {
		log.Printf("credit lookup failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits": credits})
}
