package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way Stripe does.
func signPayload(payload []byte, secret string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

func completedEvent(eventID, sessionID, orderID, paymentStatus string) []byte {
	meta := "{}"
	if orderID != "" {
		meta = fmt.Sprintf(`{"order_id":%q}`, orderID)
	}
	return []byte(fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "api_version": "2024-09-30.acacia",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": %q,
      "object": "checkout.session",
      "amount_total": 2250,
      "currency": "usd",
      "payment_status": %q,
      "payment_intent": "pi_123",
      "customer_email": "fallback@example.com",
      "customer_details": {"email": "client@example.com"},
      "metadata": %s
    }
  }
}`, eventID, sessionID, paymentStatus, meta))
}

func newTestGateway(backends *stripe.Backends) *StripeGateway {
	return NewStripeGateway(config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		ProductName:   "Translation services",
	}, backends)
}

func TestStripeGatewayVerifyEvent(t *testing.T) {
	g := newTestGateway(nil)
	payload := completedEvent("evt_1", "cs_1", "order-1", "paid")

	ev, err := g.VerifyEvent(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyEvent failed: %v", err)
	}
	if ev.ID != "evt_1" || ev.SessionID != "cs_1" || ev.OrderID() != "order-1" {
		t.Errorf("Unexpected event: %+v", ev)
	}
	if !ev.Paid || !ev.Confirms() {
		t.Errorf("Expected paid confirming event, got %+v", ev)
	}
	if ev.AmountTotal != 2250 || ev.PaymentIntentID != "pi_123" {
		t.Errorf("Unexpected amount or intent: %+v", ev)
	}
	if ev.CustomerEmail != "client@example.com" {
		t.Errorf("Expected customer details email, got %s", ev.CustomerEmail)
	}
}

func TestStripeGatewayVerifyEventUnpaid(t *testing.T) {
	g := newTestGateway(nil)
	payload := completedEvent("evt_1", "cs_1", "order-1", "unpaid")

	ev, err := g.VerifyEvent(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyEvent failed: %v", err)
	}
	if ev.Paid {
		t.Error("Expected unpaid session to be reported as not paid")
	}
}

func TestStripeGatewayVerifyEventRejectsBadSignatures(t *testing.T) {
	g := newTestGateway(nil)
	payload := completedEvent("evt_1", "cs_1", "order-1", "paid")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong secret", signPayload(payload, "whsec_other", time.Now())},
		{"stale timestamp", signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))},
		{"garbage", "t=1,v1=deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.VerifyEvent(payload, tt.header)
			if !errors.Is(err, model.ErrSignatureVerification) {
				t.Errorf("Expected ErrSignatureVerification, got %v", err)
			}
		})
	}

	// a valid signature over a different body must fail too
	tampered := completedEvent("evt_1", "cs_1", "order-2", "paid")
	if _, err := g.VerifyEvent(tampered, signPayload(payload, testWebhookSecret, time.Now())); !errors.Is(err, model.ErrSignatureVerification) {
		t.Errorf("Expected tampered payload to fail, got %v", err)
	}
}

func TestStripeGatewayVerifyEventUndecodableSession(t *testing.T) {
	g := newTestGateway(nil)
	payload := []byte(`{"id":"evt_bad","object":"event","api_version":"2024-09-30.acacia","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","amount_total":"lots"}}}`)

	ev, err := g.VerifyEvent(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("Expected signed event to verify, got %v", err)
	}
	if ev.ID != "evt_bad" || !ev.Malformed {
		t.Errorf("Expected malformed event evt_bad, got %+v", ev)
	}
}

func TestStripeGatewayVerifyEventOtherType(t *testing.T) {
	g := newTestGateway(nil)
	payload := []byte(`{"id":"evt_9","object":"event","api_version":"2024-09-30.acacia","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	ev, err := g.VerifyEvent(payload, signPayload(payload, testWebhookSecret, time.Now()))
	if err != nil {
		t.Fatalf("VerifyEvent failed: %v", err)
	}
	if ev.Confirms() || ev.Type != "customer.created" {
		t.Errorf("Unexpected event: %+v", ev)
	}
}

func TestStripeGatewayCreateSession(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.example.com/cs_test_1"}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	g := newTestGateway(&stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	s, err := g.CreateSession(context.Background(), SessionRequest{
		OrderID:       "order-1",
		CustomerEmail: "client@example.com",
		Description:   "english -> french, 1000 words",
		AmountCents:   15000,
		Currency:      "usd",
		SuccessURL:    "https://example.com/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://example.com/cancel",
		Metadata:      map[string]string{model.MetaOrderID: "order-1", model.MetaTotalWords: "1000"},
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if s.ID != "cs_test_1" || s.URL != "https://checkout.example.com/cs_test_1" {
		t.Errorf("Unexpected session: %+v", s)
	}

	want := map[string]string{
		"mode":                                    "payment",
		"client_reference_id":                     "order-1",
		"customer_email":                          "client@example.com",
		"metadata[order_id]":                      "order-1",
		"metadata[total_words]":                   "1000",
		"payment_intent_data[metadata][order_id]": "order-1",
		"line_items[0][price_data][unit_amount]":  "15000",
		"line_items[0][price_data][currency]":     "usd",
		"line_items[0][quantity]":                 "1",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("Expected form %s=%s, got %q", k, v, form[k])
		}
	}
}

func TestStripeGatewayCreateSessionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	g := newTestGateway(&stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	_, err := g.CreateSession(context.Background(), SessionRequest{OrderID: "o", AmountCents: 100, Currency: "usd"})
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Errorf("Expected ErrUpstreamUnavailable, got %v", err)
	}
}
