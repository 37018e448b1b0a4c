package app

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/savestateevan/stoicforge/app/models"
)

const testWebhookSecret = "whsec_test_secret"

func TestCreateCheckoutSessionRejectsExcessiveQuantityAtBind(t *testing.T) {
	api, mock, _ := newHandlerAPI(t, &fakeGenerator{})

	mock.ExpectQuery("SELECT stripe_customer_id").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"stripe_customer_id"}).AddRow("cus_1"))

	body := models.CheckoutRequest{Items: []models.CheckoutItem{
		{PlanID: PlanBeginner, Quantity: 1 << 40},
	}}
	w := performJSON(t, api, http.MethodPost, "/api/checkout-session", "user-1", body, func(r *gin.Engine) {
		r.POST("/api/checkout-session", asUser("user-1"), api.CreateCheckoutSession)
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", w.Code, w.Body.String())
	}
	expectationsMet(t, mock)
}

// signStripePayload computes a v1 signature header the way Stripe's CLI
// and servers do.
func signStripePayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookPayload(t *testing.T, eventID, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return payload
}

func postWebhook(t *testing.T, api *API, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/stripe/webhook", api.StripeWebhook)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookRejectsMissingSignature(t *testing.T) {
	api, mock, alerts := newHandlerAPI(t, &fakeGenerator{})

	payload := webhookPayload(t, "evt_nosig", "checkout.session.completed", map[string]any{
		"id":       "cs_1",
		"metadata": map[string]string{"userId": "user-1", "credits": "100"},
	})

	w := postWebhook(t, api, payload, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !alerts.seen(AlertSignatureInvalid) {
		t.Fatal("expected signature alert")
	}
	expectationsMet(t, mock)
}

func TestStripeWebhookRejectsForgedSignature(t *testing.T) {
	api, mock, alerts := newHandlerAPI(t, &fakeGenerator{})

	payload := webhookPayload(t, "evt_forged", "checkout.session.completed", map[string]any{
		"id":       "cs_1",
		"metadata": map[string]string{"userId": "user-1", "credits": "100"},
	})

	// Signed with the wrong secret: no ledger statement may run.
	w := postWebhook(t, api, payload, signStripePayload(payload, "whsec_wrong", time.Now()))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !alerts.seen(AlertSignatureInvalid) {
		t.Fatal("expected signature alert")
	}
	expectationsMet(t, mock)
}

func TestStripeWebhookRejectsStaleSignature(t *testing.T) {
	api, mock, alerts := newHandlerAPI(t, &fakeGenerator{})

	payload := webhookPayload(t, "evt_stale", "checkout.session.completed", map[string]any{
		"id":       "cs_1",
		"metadata": map[string]string{"userId": "user-1", "credits": "100"},
	})

	// A correctly signed but hour-old header fails the replay tolerance.
	w := postWebhook(t, api, payload, signStripePayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !alerts.seen(AlertSignatureInvalid) {
		t.Fatal("expected signature alert")
	}
	expectationsMet(t, mock)
}

func TestStripeWebhookCreditsCompletedCheckout(t *testing.T) {
	api, mock, _ := newHandlerAPI(t, &fakeGenerator{})

	payload := webhookPayload(t, "evt_http_1", "checkout.session.completed", map[string]any{
		"id":       "cs_http_1",
		"customer": "cus_1",
		"metadata": map[string]string{
			"userId":  "user-1",
			"credits": "100",
			"priceId": testBeginnerPrice,
		},
		"subscription": "sub_1",
	})

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("evt_http_1", "checkout.session.completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("user-1", 100).
		WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(100))
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs("user-1", "cus_1", "sub_1", testBeginnerPrice, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postWebhook(t, api, payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	expectationsMet(t, mock)
}

func TestStripeWebhookAcksUnresolvedUser(t *testing.T) {
	api, mock, alerts := newHandlerAPI(t, &fakeGenerator{})

	payload := webhookPayload(t, "evt_http_orphan", "checkout.session.completed", map[string]any{
		"id":       "cs_http_orphan",
		"metadata": map[string]string{"credits": "100"},
	})

	// Acknowledged so Stripe stops redelivering an event that can never
	// be attributed, but surfaced to the on-call queue.
	w := postWebhook(t, api, payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if !alerts.seen(AlertUnresolvedUser) {
		t.Fatal("expected unresolved user alert")
	}
	expectationsMet(t, mock)
}

func TestStripeWebhookProcessingFailureIs5xx(t *testing.T) {
	api, mock, _ := newHandlerAPI(t, &fakeGenerator{})

	payload := webhookPayload(t, "evt_http_fail", "checkout.session.completed", map[string]any{
		"id":       "cs_http_fail",
		"metadata": map[string]string{"userId": "user-1", "credits": "100"},
	})

	mock.ExpectExec("INSERT INTO processed_events").
		WithArgs("evt_http_fail", "checkout.session.completed").
		WillReturnError(fmt.Errorf("db down"))

	// A transient failure must be a 5xx so Stripe redelivers.
	w := postWebhook(t, api, payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	expectationsMet(t, mock)
}

func TestStripeWebhookMissingSecretIs5xx(t *testing.T) {
	api, mock, _ := newHandlerAPI(t, &fakeGenerator{})
	api.cfg.Stripe.WebhookSecret = ""

	payload := webhookPayload(t, "evt_noconf", "checkout.session.completed", map[string]any{"id": "cs_1"})

	w := postWebhook(t, api, payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	expectationsMet(t, mock)
}
