package billing

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedWebhookRequest(t *testing.T, secret, payload string) *http.Request {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestWebhookCheckoutCompletedGrantsPro(t *testing.T) {
	users := newTestUsers(t)
	u := createTestUser(t, users, "alice")
	handler := NewWebhookHandler(testWebhookSecret, NewLifecycle(users))

	eventJSON := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","mode":"subscription","customer":"cus_1","subscription":"sub_1","metadata":{"user_id":%q}}}}`, u.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, eventJSON))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
	got, err := users.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !got.Pro {
		t.Error("user should be pro after verified checkout.session.completed")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	users := newTestUsers(t)
	u := createTestUser(t, users, "alice")
	handler := NewWebhookHandler(testWebhookSecret, NewLifecycle(users))

	eventJSON := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","metadata":{"user_id":%q}}}}`, u.ID)
	req := signedWebhookRequest(t, "whsec_wrong_secret", eventJSON)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	got, _ := users.GetUser(u.ID)
	if got.Pro {
		t.Error("unverified event must not change entitlement")
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, NewLifecycle(newTestUsers(t)))

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookIgnoresUnknownEventType(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, NewLifecycle(newTestUsers(t)))

	eventJSON := `{"id":"evt_1","object":"event","type":"invoice.finalized","data":{"object":{}}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, eventJSON))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unhandled event type", rec.Code)
	}
}

func TestWebhookRetriesFailedDelivery(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, NewLifecycle(newTestUsers(t)))

	// References a user that does not exist, so processing fails and Stripe
	// should redeliver. The duplicate must be retried, not short-circuited.
	eventJSON := `{"id":"evt_retry","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","metadata":{"user_id":"u_ghost"}}}}`
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, eventJSON))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("delivery %d: status = %d, want 500, body = %q", i, rec.Code, rec.Body.String())
		}
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	handler := NewWebhookHandler(testWebhookSecret, NewLifecycle(newTestUsers(t)))

	req := httptest.NewRequest(http.MethodGet, "/api/stripe/webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestWebhookUnconfiguredSecret(t *testing.T) {
	handler := NewWebhookHandler("", NewLifecycle(newTestUsers(t)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, testWebhookSecret, `{}`))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
