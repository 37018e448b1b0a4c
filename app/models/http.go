package models

// Request and response bodies for the JSON API.

type ChatRequest struct {
	Message     string        `json:"message" binding:"required"`
	MentorID    string        `json:"mentorId"`
	History     []ChatMessage `json:"history"`
	SaveHistory bool          `json:"saveHistory"`
}

// ChatMessage is a prior exchange turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	Reply   string `json:"reply"`
	Credits int    `json:"credits"`
}

type CheckoutItem struct {
	PlanID   string `json:"planId"`
	Quantity int64  `json:"quantity"`
}

type CheckoutRequest struct {
	Items []CheckoutItem `json:"items"`
}

type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type CancelSubscriptionRequest struct {
	SubscriptionID string `json:"subscriptionId" binding:"required"`
}

type ProfileRequest struct {
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	IsPublic bool   `json:"isPublic"`
}
