// Client for the OpenAI chat completions API.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/savestateevan/stoicforge/app/config"

	"github.com/savestateevan/stoicforge/app/models"
)

// generationTimeout bounds every generation call; a timed-out call is
// indistinguishable from any other upstream failure and never debits.
const generationTimeout = 15 * time.Second

type ChatClient struct {
	apiKey  string
	baseURL string
	model   string
	httpc   *http.Client
}

func NewChatClient(cfg config.OpenAIConfig) *ChatClient {
	return &ChatClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpc:   &http.Client{Timeout: generationTimeout},
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends the persona prompt, prior turns and the new user
// message to the provider and returns the assistant reply text.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt string, history []models.ChatMessage, message string) (string, error) {
	msgs := make([]chatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, chatCompletionMessage{Role: "system", Content: systemPrompt})
	for _, h := range history {
		if h.Role != models.RoleUser && h.Role != models.RoleAssistant {
			continue
		}
		msgs = append(msgs, chatCompletionMessage{Role: h.Role, Content: h.Content})
	}
	msgs = append(msgs, chatCompletionMessage{Role: models.RoleUser, Content: message})

	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer res.Body.Close()

	var out chatCompletionResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("generation response decode failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		msg := ""
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("generation provider returned %d: %s", res.StatusCode, msg)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("generation response contained no choices")
	}
	return out.Choices[0].Message.Content, nil
}
