// Chat endpoints: mentor conversation and history.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/savestateevan/stoicforge/app/models"
	"github.com/savestateevan/stoicforge/auth"
)

const chatCost = 1

// Chat generates one mentor reply. Order matters: the balance gate runs
// before the generation call, and the debit only lands after a reply is
// in hand, so a provider failure never consumes a credit.
func (a *API) Chat(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if !a.limiter.Allow(c.Request.Context(), claims.Subject) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 25*time.Second)
	defer cancel()

	canSpend, err := a.store.CanSpend(ctx, claims.Subject, chatCost)
	if err != nil {
		log.Printf("credit check failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check credits"})
		return
	}
	if !canSpend {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient credits"})
		return
	}

	persona := ResolvePersona(req.MentorID)
	reply, err := a.chat.Complete(ctx, persona.SystemPrompt, req.History, req.Message)
	if err != nil {
		log.Printf("generation failed user=%s mentor=%s: %v", claims.Subject, persona.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to generate response"})
		return
	}

	credits, err := a.store.Debit(ctx, claims.Subject, chatCost)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			// A concurrent request spent the last credit between the
			// check and the debit; the reply is not returned unpaid.
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient credits"})
			return
		}
		log.Printf("debit failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to debit credits"})
		return
	}

	if req.SaveHistory {
		msgs := []models.Message{
			{UserID: claims.Subject, Role: models.RoleUser, Content: req.Message, MentorID: persona.ID},
			{UserID: claims.Subject, Role: models.RoleAssistant, Content: reply, MentorID: persona.ID},
		}
		if err := a.store.AppendMessages(ctx, msgs); err != nil {
			// The reply is already paid for; losing log rows is not
			// worth failing the request.
			log.Printf("failed to save chat history user=%s: %v", claims.Subject, err)
		}
	}

	c.JSON(http.StatusOK, models.ChatResponse{Reply: reply, Credits: credits})
}

// ChatHistory returns the most recent exchanges in ascending order.
func (a *API) ChatHistory(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	msgs, err := a.store.RecentMessages(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("history load failed user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
