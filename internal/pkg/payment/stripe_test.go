package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/internal/pkg/security"
)

// stripeStub simulates the Stripe REST endpoints the gateway talks to.
type stripeStub struct {
	mu          sync.Mutex
	intents     map[string]map[string]any
	events      map[string]map[string]any
	createCalls int
	refundCalls int
	lastAmount  string
	failCreate  bool
}

func newStripeStub() *stripeStub {
	return &stripeStub{
		intents: map[string]map[string]any{},
		events:  map[string]map[string]any{},
	}
}

func (s *stripeStub) addEvent(id, eventType string, object map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[id] = map[string]any{
		"id":   id,
		"type": eventType,
		"data": map[string]any{"object": object},
	}
}

func (s *stripeStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/payment_intents", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.createCalls++
		if s.failCreate {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "card_error", "message": "Your card was declined."},
			})
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.lastAmount = r.PostFormValue("amount")
		id := fmt.Sprintf("pi_%d", s.createCalls)
		intent := map[string]any{
			"id":            id,
			"client_secret": id + "_secret",
			"status":        "requires_payment_method",
			"currency":      r.PostFormValue("currency"),
		}
		s.intents[id] = intent
		json.NewEncoder(w).Encode(intent)
	})
	mux.HandleFunc("GET /v1/payment_intents/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/")
		intent, ok := s.intents[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "No such payment_intent: " + id},
			})
			return
		}
		json.NewEncoder(w).Encode(intent)
	})
	mux.HandleFunc("GET /v1/events/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		id := strings.TrimPrefix(r.URL.Path, "/v1/events/")
		event, ok := s.events[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "No such event: " + id},
			})
			return
		}
		json.NewEncoder(w).Encode(event)
	})
	mux.HandleFunc("POST /v1/refunds", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.refundCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"id":     fmt.Sprintf("re_%d", s.refundCalls),
			"status": "succeeded",
		})
	})
	return mux
}

// setIntentStatus overrides the stored status of a stubbed intent.
func (s *stripeStub) setIntentStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.intents[id]
	if !ok {
		intent = map[string]any{"id": id}
		s.intents[id] = intent
	}
	intent["status"] = status
}

func startStripeStub(t *testing.T) *stripeStub {
	t.Helper()
	stub := newStripeStub()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	t.Setenv("STRIPE_API_BASE_URL", srv.URL)
	return stub
}

const testSecret = "unit-test-secret"

// newConfiguredGateway builds a merchant-configured stripe gateway
// against the stub server.
func newConfiguredGateway(t *testing.T, repo Repository) Gateway {
	t.Helper()
	t.Setenv("CREDENTIALS_SECRET", testSecret)
	enc, err := security.EncryptCredentials(map[string]string{
		"secret_key":      "sk_test_123",
		"publishable_key": "pk_test_123",
	}, testSecret)
	if err != nil {
		t.Fatalf("failed to encrypt credentials: %v", err)
	}
	cfg := &models.GatewayConfig{
		ID:             "cfg-1",
		UserID:         1,
		GatewayName:    models.GatewayStripe,
		IsActive:       true,
		CredentialsEnc: enc,
	}
	gw, err := NewStripeGateway(cfg, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}
	return gw
}

func taxedInvoice() *models.Invoice {
	inv := &models.Invoice{
		ID:            "inv-1",
		UserID:        1,
		InvoiceNumber: "INV-0001",
		Status:        models.InvoiceStatusUnpaid,
		TaxRate:       10,
		Items: []models.InvoiceItem{
			{Description: "Design work", Quantity: 2, UnitPrice: 10.00},
			{Description: "Hosting", Quantity: 1, UnitPrice: 5.00},
		},
	}
	inv.RecalculateTotals()
	return inv
}

func TestCreatePaymentSessionMinorUnits(t *testing.T) {
	stub := startStripeStub(t)
	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	gw := newConfiguredGateway(t, repo)

	result, gwErr := gw.CreatePaymentSession(context.Background(), inv, "https://ok", "https://cancel", "usd")
	if gwErr != nil {
		t.Fatalf("unexpected gateway error: %v", gwErr)
	}

	// 20.00 + 5.00 + 2.50 tax = 27.50 -> 2750 minor units.
	if stub.lastAmount != "2750" {
		t.Fatalf("expected charge of 2750 minor units, got %s", stub.lastAmount)
	}
	if result.ClientSecret == "" {
		t.Fatalf("expected a client secret in the session result")
	}
	if result.PublishableKey != "pk_test_123" {
		t.Fatalf("expected merchant publishable key, got %q", result.PublishableKey)
	}

	p, err := repo.GetPayment(result.PaymentID)
	if err != nil {
		t.Fatalf("expected a persisted payment record: %v", err)
	}
	if p.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", p.Status)
	}
	if p.GatewayPaymentID == nil || *p.GatewayPaymentID != result.ProviderPaymentID {
		t.Fatalf("expected provider payment id on record")
	}
	if p.Amount != 27.50 {
		t.Fatalf("expected amount 27.50, got %.2f", p.Amount)
	}
}

func TestCreatePaymentSessionPlatformFee(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("PLATFORM_GATEWAY_SECRET_KEY", "sk_platform")
	t.Setenv("PLATFORM_GATEWAY_PUBLISHABLE_KEY", "pk_platform")
	t.Setenv("PLATFORM_GATEWAY_FEE_PERCENT", "1.0")

	repo := newFakeRepo()
	repo.settings[1] = &models.UserSettings{UserID: 1, AllowPlatformGateway: true}
	inv := &models.Invoice{
		ID:            "inv-2",
		UserID:        1,
		InvoiceNumber: "INV-0002",
		Status:        models.InvoiceStatusUnpaid,
		Items:         []models.InvoiceItem{{Description: "Consulting", Quantity: 1, UnitPrice: 100.00}},
	}
	inv.RecalculateTotals()
	repo.addInvoice(inv)
	gw := newConfiguredGateway(t, repo)

	result, gwErr := gw.CreatePaymentSession(context.Background(), inv, "", "", "usd")
	if gwErr != nil {
		t.Fatalf("unexpected gateway error: %v", gwErr)
	}
	if result.PlatformFee != 1.00 {
		t.Fatalf("expected platform fee 1.00, got %.2f", result.PlatformFee)
	}
	if result.TotalWithFee != 101.00 {
		t.Fatalf("expected total with fee 101.00, got %.2f", result.TotalWithFee)
	}
	if result.PublishableKey != "pk_platform" {
		t.Fatalf("expected platform publishable key, got %q", result.PublishableKey)
	}
	if stub.lastAmount != "10100" {
		t.Fatalf("expected charge of 10100 minor units, got %s", stub.lastAmount)
	}

	// The surcharge is charged but never folded into the recorded amount.
	p, err := repo.GetPayment(result.PaymentID)
	if err != nil {
		t.Fatalf("expected a persisted payment record: %v", err)
	}
	if p.Amount != 100.00 {
		t.Fatalf("expected recorded amount to match the invoice total 100.00, got %.2f", p.Amount)
	}
	if p.Metadata["platform_fee"] != "1.00" {
		t.Fatalf("expected platform fee in metadata, got %q", p.Metadata["platform_fee"])
	}
}

func TestCreatePaymentSessionProviderFailure(t *testing.T) {
	stub := startStripeStub(t)
	stub.failCreate = true

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	gw := newConfiguredGateway(t, repo)

	result, gwErr := gw.CreatePaymentSession(context.Background(), inv, "", "", "usd")
	if result != nil {
		t.Fatalf("expected no session result on provider failure")
	}
	if gwErr == nil {
		t.Fatalf("expected a gateway error")
	}
	if gwErr.PaymentID == "" {
		t.Fatalf("expected the failed payment record to be referenced")
	}

	p, err := repo.GetPayment(gwErr.PaymentID)
	if err != nil {
		t.Fatalf("expected a persisted failed payment: %v", err)
	}
	if p.Status != models.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", p.Status)
	}
	if p.ErrorMessage == nil || !strings.Contains(*p.ErrorMessage, "declined") {
		t.Fatalf("expected provider error message on record, got %v", p.ErrorMessage)
	}
}

func webhookBody(eventID string) WebhookRequest {
	return WebhookRequest{Body: []byte(`{"id":"` + eventID + `"}`)}
}

func TestHandleWebhookCompletesPayment(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:        inv.ID,
		GatewayName:      models.GatewayStripe,
		Status:           models.PaymentStatusPending,
		GatewayPaymentID: strPtr("pi_77"),
	}
	repo.CreatePayment(payment)
	stub.addEvent("evt_1", "payment_intent.succeeded", map[string]any{"id": "pi_77"})

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build anonymous gateway: %v", err)
	}

	result := gw.HandleWebhook(context.Background(), webhookBody("evt_1"))
	if !result.Success {
		t.Fatalf("expected webhook success, got: %s", result.Message)
	}
	if result.Payment == nil || result.Payment.ID != payment.ID {
		t.Fatalf("expected the matched payment in the result")
	}
	if payment.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if payment.PaymentDate == nil {
		t.Fatalf("expected payment date to be stamped")
	}
	if inv.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected invoice to be paid, got %s", inv.Status)
	}

	ev := repo.events["evt_1"]
	if ev == nil || !ev.IsProcessed {
		t.Fatalf("expected the webhook event to be marked processed")
	}
	if ev.PaymentID == nil || *ev.PaymentID != payment.ID {
		t.Fatalf("expected the event to link the payment")
	}
}

func TestHandleWebhookDuplicateDelivery(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:        inv.ID,
		GatewayName:      models.GatewayStripe,
		Status:           models.PaymentStatusPending,
		GatewayPaymentID: strPtr("pi_77"),
	}
	repo.CreatePayment(payment)
	stub.addEvent("evt_dup", "payment_intent.succeeded", map[string]any{"id": "pi_77"})

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	first := gw.HandleWebhook(context.Background(), webhookBody("evt_dup"))
	if !first.Success {
		t.Fatalf("expected first delivery to succeed: %s", first.Message)
	}
	stamped := *payment.PaymentDate

	second := gw.HandleWebhook(context.Background(), webhookBody("evt_dup"))
	if !second.Success {
		t.Fatalf("expected duplicate delivery to succeed: %s", second.Message)
	}
	if second.Payment != nil {
		t.Fatalf("expected no payment attached to a duplicate delivery")
	}
	if !strings.Contains(second.Message, "already processed") {
		t.Fatalf("unexpected duplicate message: %s", second.Message)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected a single event row, got %d", len(repo.events))
	}
	if !payment.PaymentDate.Equal(stamped) {
		t.Fatalf("expected payment date to stay %v, got %v", stamped, payment.PaymentDate)
	}
}

func TestHandleWebhookUnrecognizedEventType(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	stub.addEvent("evt_cust", "customer.created", map[string]any{"id": "cus_1"})

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	result := gw.HandleWebhook(context.Background(), webhookBody("evt_cust"))
	if !result.Success {
		t.Fatalf("expected unrecognized event to be acknowledged: %s", result.Message)
	}
	if result.Payment != nil {
		t.Fatalf("expected no payment for an unrecognized event")
	}

	ev := repo.events["evt_cust"]
	if ev == nil {
		t.Fatalf("expected the event to be persisted")
	}
	if !ev.IsProcessed {
		t.Fatalf("expected the event to be marked processed")
	}
	if ev.PaymentID != nil {
		t.Fatalf("expected no payment link on an unrecognized event")
	}
}

func TestHandleWebhookRejectsUnknownEvent(t *testing.T) {
	startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	result := gw.HandleWebhook(context.Background(), webhookBody("evt_forged"))
	if result.Success {
		t.Fatalf("expected verification failure for an event the provider does not know")
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected no event row for a failed verification")
	}
}

func TestHandleWebhookMissingEventID(t *testing.T) {
	startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	result := gw.HandleWebhook(context.Background(), WebhookRequest{Body: []byte(`{"type":"x"}`)})
	if result.Success {
		t.Fatalf("expected failure for a payload without an event id")
	}
}

func TestHandleWebhookMetadataFallbackMatch(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:   inv.ID,
		GatewayName: models.GatewayStripe,
		Status:      models.PaymentStatusPending,
		Metadata:    models.MetadataMap{"payment_intent_id": "pi_meta"},
	}
	repo.CreatePayment(payment)
	stub.addEvent("evt_meta", "payment_intent.succeeded", map[string]any{"id": "pi_meta"})

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	result := gw.HandleWebhook(context.Background(), webhookBody("evt_meta"))
	if !result.Success {
		t.Fatalf("expected metadata fallback to match the payment: %s", result.Message)
	}
	if payment.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
}

func TestHandleWebhookPaymentFailed(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:        inv.ID,
		GatewayName:      models.GatewayStripe,
		Status:           models.PaymentStatusPending,
		GatewayPaymentID: strPtr("pi_bad"),
	}
	repo.CreatePayment(payment)
	stub.addEvent("evt_fail", "payment_intent.payment_failed", map[string]any{
		"id":                 "pi_bad",
		"last_payment_error": map[string]any{"message": "Your card has insufficient funds."},
	})

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	result := gw.HandleWebhook(context.Background(), webhookBody("evt_fail"))
	if !result.Success {
		t.Fatalf("expected failure event to be processed: %s", result.Message)
	}
	if payment.Status != models.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", payment.Status)
	}
	if payment.ErrorMessage == nil || !strings.Contains(*payment.ErrorMessage, "insufficient funds") {
		t.Fatalf("expected provider error message, got %v", payment.ErrorMessage)
	}
	if inv.Status != models.InvoiceStatusUnpaid {
		t.Fatalf("expected invoice to stay unpaid, got %s", inv.Status)
	}
}

func TestGetPaymentStatusReconciles(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:        inv.ID,
		GatewayName:      models.GatewayStripe,
		Status:           models.PaymentStatusPending,
		GatewayPaymentID: strPtr("pi_rec"),
	}
	repo.CreatePayment(payment)
	stub.setIntentStatus("pi_rec", "succeeded")

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	status := gw.GetPaymentStatus(context.Background(), payment.ID)
	if status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
	if inv.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected invoice to be paid after reconciliation")
	}

	// A second pull is a no-op and must not re-stamp the payment date.
	stamped := *payment.PaymentDate
	if again := gw.GetPaymentStatus(context.Background(), payment.ID); again != models.PaymentStatusCompleted {
		t.Fatalf("expected completed on second pull, got %s", again)
	}
	if !payment.PaymentDate.Equal(stamped) {
		t.Fatalf("expected payment date to stay %v", stamped)
	}
}

func TestGetPaymentStatusUnknownPayment(t *testing.T) {
	startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	gw, err := NewStripeGateway(nil, newFakeRepo())
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}
	if status := gw.GetPaymentStatus(context.Background(), "missing"); status != StatusNotFound {
		t.Fatalf("expected %s, got %s", StatusNotFound, status)
	}
}

func TestMapStripeStatus(t *testing.T) {
	tests := []struct {
		stripe  string
		current string
		want    string
	}{
		{"succeeded", models.PaymentStatusPending, models.PaymentStatusCompleted},
		{"processing", models.PaymentStatusPending, models.PaymentStatusProcessing},
		{"requires_payment_method", models.PaymentStatusProcessing, models.PaymentStatusPending},
		{"requires_action", models.PaymentStatusPending, models.PaymentStatusPending},
		{"canceled", models.PaymentStatusPending, models.PaymentStatusFailed},
		{"something_new", models.PaymentStatusProcessing, models.PaymentStatusProcessing},
	}
	for _, tt := range tests {
		if got := mapStripeStatus(tt.stripe, tt.current); got != tt.want {
			t.Fatalf("mapStripeStatus(%q, %q) = %q, want %q", tt.stripe, tt.current, got, tt.want)
		}
	}
}

func TestRefundPaymentRecordsRefund(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	inv.Status = models.InvoiceStatusPaid
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:        inv.ID,
		GatewayName:      models.GatewayStripe,
		Status:           models.PaymentStatusCompleted,
		GatewayPaymentID: strPtr("pi_ref"),
	}
	repo.CreatePayment(payment)

	gw, err := NewStripeGateway(nil, repo)
	if err != nil {
		t.Fatalf("failed to build gateway: %v", err)
	}

	result := gw.RefundPayment(context.Background(), payment)
	if !result.Success {
		t.Fatalf("expected refund to succeed: %s", result.Message)
	}
	if result.RefundID == "" {
		t.Fatalf("expected a refund id")
	}
	if payment.Status != models.PaymentStatusRefunded {
		t.Fatalf("expected refunded payment, got %s", payment.Status)
	}
	if payment.Metadata["refund_id"] != result.RefundID {
		t.Fatalf("expected refund id in metadata")
	}
	if stub.refundCalls != 1 {
		t.Fatalf("expected one provider refund call, got %d", stub.refundCalls)
	}
	// Refunds never revert the invoice.
	if inv.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected invoice to stay paid, got %s", inv.Status)
	}
}

func TestNewStripeGatewayWithoutCredentials(t *testing.T) {
	if _, err := NewStripeGateway(nil, newFakeRepo()); err == nil {
		t.Fatalf("expected an error when no credentials are configured")
	}
}
