package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/savestateevan/stoicforge/app/config"
	"github.com/savestateevan/stoicforge/app/models"
	"github.com/savestateevan/stoicforge/auth"
)

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) Complete(_ context.Context, _ string, _ []models.ChatMessage, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newHandlerAPI(t *testing.T, gen generator) (*API, sqlmock.Sqlmock, *recordingAlerter) {
	t.Helper()
	store, mock := newMockStore(t)
	alerts := &recordingAlerter{}
	plans := testPlanCatalog()
	cfg := &config.Config{
		FrontendURL: "http://localhost:3000",
		Stripe: config.StripeConfig{
			WebhookSecret:   testWebhookSecret,
			PriceIDBeginner: testBeginnerPrice,
			PriceIDPro:      testProPrice,
		},
	}
	return &API{
		cfg:        cfg,
		store:      store,
		plans:      plans,
		billing:    NewBillingService(store, plans, cfg.FrontendURL),
		chat:       gen,
		limiter:    NewRateLimiter(config.RedisConfig{}),
		alerts:     alerts,
		reconciler: NewReconciler(store, plans, alerts),
	}, mock, alerts
}

// asUser injects verified claims like the auth middleware would.
func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID == "" {
			c.Next()
			return
		}
		claims := &auth.Claims{
			Subject: userID,
			Raw:     map[string]any{"email": userID + "@example.test"},
		}
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func performChat(t *testing.T, api *API, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/chat", asUser(userID), api.Chat)

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatRequiresAuthContext(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	api, mock, _ := newHandlerAPI(t, gen)

	w := performChat(t, api, "", models.ChatRequest{Message: "hello"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if gen.calls != 0 {
		t.Fatalf("generator calls = %d, want 0", gen.calls)
	}
	expectationsMet(t, mock)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	api, mock, _ := newHandlerAPI(t, gen)

	w := performChat(t, api, "user-1", map[string]string{"mentorId": "seneca"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	expectationsMet(t, mock)
}

func TestChatInsufficientCreditsBlocksGeneration(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	api, mock, _ := newHandlerAPI(t, gen)

	mock.ExpectQuery("SELECT credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(0))

	w := performChat(t, api, "user-1", models.ChatRequest{Message: "What is virtue?"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	// The balance gate must run before the provider call.
	if gen.calls != 0 {
		t.Fatalf("generator calls = %d, want 0", gen.calls)
	}
	expectationsMet(t, mock)
}

func TestChatDebitsOneCreditAndSavesHistory(t *testing.T) {
	gen := &fakeGenerator{reply: "Waste no more time arguing about what a good man should be. Be one."}
	api, mock, _ := newHandlerAPI(t, gen)

	mock.ExpectQuery("SELECT credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(5))
	mock.ExpectQuery("UPDATE users").
		WithArgs("user-1", chatCost).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(4))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("user-1", "user", "What is virtue?", "marcus").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("user-1", "assistant", gen.reply, "marcus").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	w := performChat(t, api, "user-1", models.ChatRequest{
		Message:     "What is virtue?",
		SaveHistory: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var resp models.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Reply != gen.reply {
		t.Fatalf("reply = %q, want %q", resp.Reply, gen.reply)
	}
	if resp.Credits != 4 {
		t.Fatalf("credits = %d, want 4", resp.Credits)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
	expectationsMet(t, mock)
}

func TestChatGenerationFailureDoesNotDebit(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("upstream timeout")}
	api, mock, _ := newHandlerAPI(t, gen)

	// Balance check only; no debit statement may follow a failed
	// generation.
	mock.ExpectQuery("SELECT credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(5))

	w := performChat(t, api, "user-1", models.ChatRequest{Message: "What is virtue?"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	expectationsMet(t, mock)
}

func TestChatConcurrentSpendLosesAtDebit(t *testing.T) {
	gen := &fakeGenerator{reply: "Persist and resist."}
	api, mock, _ := newHandlerAPI(t, gen)

	// The check passes but another request spends the last credit first;
	// the conditional debit matches zero rows.
	mock.ExpectQuery("SELECT credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(1))
	mock.ExpectQuery("UPDATE users").
		WithArgs("user-1", chatCost).
		WillReturnError(sql.ErrNoRows)

	w := performChat(t, api, "user-1", models.ChatRequest{Message: "What is virtue?"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	expectationsMet(t, mock)
}

func TestChatUsesRequestedPersona(t *testing.T) {
	gen := &fakeGenerator{reply: "It is not events that disturb us, but our judgements about them."}
	api, mock, _ := newHandlerAPI(t, gen)

	mock.ExpectQuery("SELECT credits").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(3))
	mock.ExpectQuery("UPDATE users").
		WithArgs("user-1", chatCost).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(2))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("user-1", "user", "How do I deal with loss?", "epictetus").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs("user-1", "assistant", gen.reply, "epictetus").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	w := performChat(t, api, "user-1", models.ChatRequest{
		Message:     "How do I deal with loss?",
		MentorID:    "epictetus",
		SaveHistory: true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	expectationsMet(t, mock)
}

func TestChatHistoryReturnsAscendingRows(t *testing.T) {
	api, mock, _ := newHandlerAPI(t, &fakeGenerator{})

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, role, content, mentor_id, created_at").
		WithArgs("user-1", historyLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "content", "mentor_id", "created_at"}).
			AddRow(int64(1), "user", "What is virtue?", "marcus", now.Add(-time.Minute)).
			AddRow(int64(2), "assistant", "Virtue is the only good.", "marcus", now))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/chat/history", asUser("user-1"), api.ChatHistory)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("len(messages) = %d, want 2", len(resp.Messages))
	}
	if resp.Messages[0].Role != models.RoleUser || resp.Messages[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected row order: %+v", resp.Messages)
	}
	expectationsMet(t, mock)
}

func TestChatHistoryEmptyIsAnEmptyList(t *testing.T) {
	api, mock, _ := newHandlerAPI(t, &fakeGenerator{})

	mock.ExpectQuery("SELECT id, role, content, mentor_id, created_at").
		WithArgs("user-1", historyLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role", "content", "mentor_id", "created_at"}))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/chat/history", asUser("user-1"), api.ChatHistory)

	req := httptest.NewRequest(http.MethodGet, "/api/chat/history", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != `{"messages":[]}` {
		t.Fatalf("body = %s, want empty messages list", got)
	}
	expectationsMet(t, mock)
}
