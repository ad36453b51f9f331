package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/acroflow/workshop-registration/internal/model"
	"github.com/acroflow/workshop-registration/internal/service"
)

func testEvent() *model.EventConfig {
	return &model.EventConfig{
		ProductName: "Acrobatics Workshop - Koh Phangan",
		Currency:    "eur",
		Sessions: []model.Session{
			{ID: "jan16-afternoon", Date: "Jan 16", Time: "Friday Afternoon", Name: "Hard Flow"},
			{ID: "jan16-evening", Date: "Jan 16", Time: "Friday Evening", Name: "Icarian Part I"},
			{ID: "jan17-morning", Date: "Jan 17", Time: "Saturday Morning", Name: "No Hand Flow"},
			{ID: "jan17-afternoon", Date: "Jan 17", Time: "Saturday Afternoon", Name: "Icarian Part II"},
		},
		Pricing: model.PricingConfig{
			EarlyBirdDeadline:    time.Date(2026, 1, 2, 23, 59, 59, 0, time.UTC),
			EarlyBirdSingle:      30,
			EarlyBirdFullWeekend: 100,
			RegularSingle:        35,
			RegularFullWeekend:   120,
			FullWeekendThreshold: 4,
		},
	}
}

type mockPayments struct {
	createResult   *stripe.CheckoutSession
	createErr      error
	retrieveResult *stripe.CheckoutSession
	retrieveErr    error
	verifyEvent    stripe.Event
	verifyErr      error
}

func (m *mockPayments) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	return m.createResult, m.createErr
}

func (m *mockPayments) RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	return m.retrieveResult, m.retrieveErr
}

func (m *mockPayments) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return m.verifyEvent, m.verifyErr
}

type mockLedger struct {
	rows []model.LedgerRow
	err  error
}

func (m *mockLedger) AppendRow(ctx context.Context, row model.LedgerRow) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, row)
	return nil
}

func newTestHandler(payments *mockPayments, ledger *mockLedger) *RegistrationHandler {
	svc := service.NewRegistrationService(testEvent(), payments, ledger, "https://workshop.example.com")
	return NewRegistrationHandler(svc)
}

func postJSON(t *testing.T, handlerFn http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handlerFn(rr, req)
	return rr
}

func completedEvent(t *testing.T, cs *stripe.CheckoutSession) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(cs)
	if err != nil {
		t.Fatalf("marshal checkout session: %v", err)
	}
	return stripe.Event{
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

// ─── Checkout ─────────────────────────────────────────────────────────────────

func TestCreateCheckout(t *testing.T) {
	payments := &mockPayments{
		createResult: &stripe.CheckoutSession{ID: "cs_123", URL: "https://checkout.stripe.com/pay/cs_123"},
	}
	h := newTestHandler(payments, &mockLedger{})

	body := `{"fullName":"Ada Lovelace","email":"ada@example.com","acroRole":"Flyer","selectedSessions":["jan16-afternoon","jan17-morning"],"sessionDetails":"","totalAmount":60,"currency":"eur"}`
	rr := postJSON(t, h.CreateCheckout, "/api/checkout", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp model.CheckoutResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.URL != "https://checkout.stripe.com/pay/cs_123" {
		t.Errorf("url = %q", resp.URL)
	}
}

func TestCreateCheckoutMissingFields(t *testing.T) {
	h := newTestHandler(&mockPayments{}, &mockLedger{})

	body := `{"email":"ada@example.com","acroRole":"Flyer","selectedSessions":["jan16-afternoon"]}`
	rr := postJSON(t, h.CreateCheckout, "/api/checkout", body)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCreateCheckoutMalformedBody(t *testing.T) {
	h := newTestHandler(&mockPayments{}, &mockLedger{})

	rr := postJSON(t, h.CreateCheckout, "/api/checkout", `{"fullName": `)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCreateCheckoutProviderFailure(t *testing.T) {
	payments := &mockPayments{createErr: errors.New("stripe: connection reset")}
	h := newTestHandler(payments, &mockLedger{})

	body := `{"fullName":"Ada Lovelace","email":"ada@example.com","acroRole":"Flyer","selectedSessions":["jan16-afternoon"]}`
	rr := postJSON(t, h.CreateCheckout, "/api/checkout", body)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == "" {
		t.Error("error message should not be empty")
	}
}

// ─── Webhook ──────────────────────────────────────────────────────────────────

func TestStripeWebhookInvalidSignature(t *testing.T) {
	ledger := &mockLedger{}
	payments := &mockPayments{verifyErr: errors.New("webhook: signature mismatch")}
	h := newTestHandler(payments, ledger)

	rr := postJSON(t, h.StripeWebhook, "/api/webhook", `{"type":"checkout.session.completed"}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if len(ledger.rows) != 0 {
		t.Error("ledger must never be called for an unverified event")
	}
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	ledger := &mockLedger{}
	payments := &mockPayments{verifyEvent: stripe.Event{Type: "payment_intent.succeeded"}}
	h := newTestHandler(payments, ledger)

	rr := postJSON(t, h.StripeWebhook, "/api/webhook", `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp model.WebhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Received {
		t.Error("received should be true")
	}
	if len(ledger.rows) != 0 {
		t.Error("ledger must not be called for ignored event kinds")
	}
}

func TestStripeWebhookCompletedSession(t *testing.T) {
	ledger := &mockLedger{}
	cs := &stripe.CheckoutSession{
		ID:          "cs_123",
		AmountTotal: 6000,
		Metadata: map[string]string{
			"fullName":         "Ada Lovelace",
			"email":            "ada@example.com",
			"acroRole":         "Flyer",
			"selectedSessions": "jan16-afternoon,jan17-morning",
			"sessionDetails":   "Jan 16 Friday Afternoon: Hard Flow, Jan 17 Saturday Morning: No Hand Flow",
		},
	}
	payments := &mockPayments{verifyEvent: completedEvent(t, cs)}
	h := newTestHandler(payments, ledger)

	rr := postJSON(t, h.StripeWebhook, "/api/webhook", `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("appended %d rows, want 1", len(ledger.rows))
	}
	row := ledger.rows[0]
	if row.StripeSessionID != "cs_123" || row.TotalAmount != 60 || row.PaymentStatus != "Paid" {
		t.Errorf("row = %+v", row)
	}
}

func TestStripeWebhookMissingMetadata(t *testing.T) {
	ledger := &mockLedger{}
	cs := &stripe.CheckoutSession{
		ID:          "cs_123",
		AmountTotal: 6000,
		Metadata:    map[string]string{"email": "ada@example.com"},
	}
	payments := &mockPayments{verifyEvent: completedEvent(t, cs)}
	h := newTestHandler(payments, ledger)

	rr := postJSON(t, h.StripeWebhook, "/api/webhook", `{}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if len(ledger.rows) != 0 {
		t.Error("ledger must not be called when metadata is incomplete")
	}
}

// The payment is captured before the ledger append runs, so a ledger failure
// must still acknowledge the delivery.
func TestStripeWebhookLedgerFailureStillAcknowledges(t *testing.T) {
	ledger := &mockLedger{err: errors.New("sheets: permission denied")}
	cs := &stripe.CheckoutSession{
		ID:          "cs_123",
		AmountTotal: 6000,
		Metadata:    map[string]string{"fullName": "Ada Lovelace", "email": "ada@example.com"},
	}
	payments := &mockPayments{verifyEvent: completedEvent(t, cs)}
	h := newTestHandler(payments, ledger)

	rr := postJSON(t, h.StripeWebhook, "/api/webhook", `{}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite ledger failure", rr.Code)
	}
	var resp model.WebhookResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Received {
		t.Error("received should be true despite ledger failure")
	}
}

// ─── Reprocess ────────────────────────────────────────────────────────────────

func TestReprocess(t *testing.T) {
	ledger := &mockLedger{}
	payments := &mockPayments{
		retrieveResult: &stripe.CheckoutSession{
			ID:            "cs_123",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			AmountTotal:   12000,
			CustomerEmail: "ada@example.com",
			Metadata:      map[string]string{"fullName": "Ada Lovelace"},
		},
	}
	h := newTestHandler(payments, ledger)

	rr := postJSON(t, h.Reprocess, "/api/admin/reprocess", `{"sessionId":"cs_123"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp model.ReprocessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success {
		t.Error("success should be true")
	}
	if len(ledger.rows) != 1 {
		t.Fatalf("appended %d rows, want 1", len(ledger.rows))
	}
}

func TestReprocessMissingSessionID(t *testing.T) {
	h := newTestHandler(&mockPayments{}, &mockLedger{})

	rr := postJSON(t, h.Reprocess, "/api/admin/reprocess", `{"sessionId":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestReprocessNotPaid(t *testing.T) {
	payments := &mockPayments{
		retrieveResult: &stripe.CheckoutSession{ID: "cs_123", PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid},
	}
	h := newTestHandler(payments, &mockLedger{})

	rr := postJSON(t, h.Reprocess, "/api/admin/reprocess", `{"sessionId":"cs_123"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestReprocessLedgerFailureSurfaces(t *testing.T) {
	payments := &mockPayments{
		retrieveResult: &stripe.CheckoutSession{
			ID:            "cs_123",
			PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			Metadata:      map[string]string{"fullName": "Ada Lovelace", "email": "ada@example.com"},
		},
	}
	h := newTestHandler(payments, &mockLedger{err: errors.New("sheets: backend unavailable")})

	rr := postJSON(t, h.Reprocess, "/api/admin/reprocess", `{"sessionId":"cs_123"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

// ─── Health ───────────────────────────────────────────────────────────────────

func TestHealthCheck(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	HealthCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}
