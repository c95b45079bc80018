package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/internal/pkg/security"
)

func encryptedTestCredentials(t *testing.T) string {
	t.Helper()
	t.Setenv("CREDENTIALS_SECRET", testSecret)
	enc, err := security.EncryptCredentials(map[string]string{
		"secret_key":      "sk_test_123",
		"publishable_key": "pk_test_123",
	}, testSecret)
	if err != nil {
		t.Fatalf("failed to encrypt credentials: %v", err)
	}
	return enc
}

func TestResolveCurrency(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[7] = &models.UserSettings{UserID: 7, Currency: "EUR"}
	svc := NewService(NewRegistry(repo), repo)

	if got := svc.ResolveCurrency("GBP", 7); got != "gbp" {
		t.Fatalf("expected explicit currency to win, got %q", got)
	}
	if got := svc.ResolveCurrency("", 7); got != "eur" {
		t.Fatalf("expected owner currency fallback, got %q", got)
	}
	if got := svc.ResolveCurrency("", 99); got != "usd" {
		t.Fatalf("expected usd default, got %q", got)
	}
}

func TestCreateSessionNoGatewayConfigured(t *testing.T) {
	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	svc := NewService(NewRegistry(repo), repo)

	_, err := svc.CreateSession(context.Background(), inv, "", "", "", nil)
	if !errors.Is(err, ErrNoGatewayConfigured) {
		t.Fatalf("expected ErrNoGatewayConfigured, got %v", err)
	}
}

func TestCreateSessionUsesResolvedDefault(t *testing.T) {
	stub := startStripeStub(t)
	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	repo.configs = []models.GatewayConfig{
		{ID: "cfg-a", UserID: 1, GatewayName: models.GatewayStripe, IsActive: true, IsDefault: true, CredentialsEnc: encryptedTestCredentials(t)},
	}
	svc := NewService(NewRegistry(repo), repo)

	result, err := svc.CreateSession(context.Background(), inv, "", "", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Currency != "usd" {
		t.Fatalf("expected usd fallback currency, got %q", result.Currency)
	}
	if stub.createCalls != 1 {
		t.Fatalf("expected one provider call, got %d", stub.createCalls)
	}
}

func TestRefundRequiresCompletedStatus(t *testing.T) {
	stub := startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:        inv.ID,
		GatewayName:      models.GatewayStripe,
		Status:           models.PaymentStatusPending,
		GatewayPaymentID: strPtr("pi_x"),
	}
	repo.CreatePayment(payment)
	svc := NewService(NewRegistry(repo), repo)

	result := svc.RefundPayment(context.Background(), payment.ID)
	if result.Success {
		t.Fatalf("expected refund of a pending payment to fail")
	}
	if !strings.Contains(result.Message, "Cannot refund payment with status pending") {
		t.Fatalf("unexpected message: %s", result.Message)
	}
	// The precondition check happens before any provider call.
	if stub.refundCalls != 0 {
		t.Fatalf("expected zero provider refund calls, got %d", stub.refundCalls)
	}
}

func TestRefundUnknownPayment(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(NewRegistry(repo), repo)

	result := svc.RefundPayment(context.Background(), "missing")
	if result.Success || result.Message != "Payment not found" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGetPaymentStatusResolvesByRecordGatewayName(t *testing.T) {
	startStripeStub(t)
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:   inv.ID,
		GatewayName: "discontinued-gateway",
		Status:      models.PaymentStatusCompleted,
	}
	repo.CreatePayment(payment)
	svc := NewService(NewRegistry(repo), repo)

	// The record names a gateway the registry no longer carries.
	if status := svc.GetPaymentStatus(context.Background(), payment.ID); status != StatusError {
		t.Fatalf("expected %s for an unresolvable gateway, got %s", StatusError, status)
	}
	if status := svc.GetPaymentStatus(context.Background(), "missing"); status != StatusNotFound {
		t.Fatalf("expected %s for an unknown payment", StatusNotFound)
	}
}

func TestCapturePayment(t *testing.T) {
	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:   inv.ID,
		GatewayName: models.GatewayStripe,
		Status:      models.PaymentStatusPending,
	}
	repo.CreatePayment(payment)
	svc := NewService(NewRegistry(repo), repo)

	captured, err := svc.CapturePayment(context.Background(), payment.ID, "order_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", captured.Status)
	}
	if captured.GatewayPaymentID == nil || *captured.GatewayPaymentID != "order_1" {
		t.Fatalf("expected order id on the record")
	}
	if inv.Status != models.InvoiceStatusPaid {
		t.Fatalf("expected invoice to be paid")
	}

	payment.Status = models.PaymentStatusRefunded
	if _, err := svc.CapturePayment(context.Background(), payment.ID, ""); err == nil {
		t.Fatalf("expected capture of a refunded payment to fail")
	}
}

func TestOwnedPayment(t *testing.T) {
	repo := newFakeRepo()
	inv := taxedInvoice()
	repo.addInvoice(inv)
	payment := &models.InvoicePayment{
		InvoiceID:   inv.ID,
		GatewayName: models.GatewayStripe,
		Status:      models.PaymentStatusCompleted,
	}
	repo.CreatePayment(payment)
	svc := NewService(NewRegistry(repo), repo)

	if _, err := svc.OwnedPayment(payment.ID, inv.UserID); err != nil {
		t.Fatalf("expected owner lookup to succeed: %v", err)
	}
	if _, err := svc.OwnedPayment(payment.ID, 42); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.OwnedPayment("missing", inv.UserID); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestRegistryListAvailableFiltersFailures(t *testing.T) {
	t.Setenv("STRIPE_TEST_SECRET_KEY", "sk_anon")

	repo := newFakeRepo()
	registry := NewRegistry(repo)
	registry.Register(Entry{
		Name:        "broken",
		DisplayName: "Broken Gateway",
		New: func(cfg *models.GatewayConfig, repo Repository) (Gateway, error) {
			return nil, errors.New("missing runtime dependency")
		},
	})

	infos := registry.ListAvailable()
	if len(infos) != 1 {
		t.Fatalf("expected the broken gateway to be filtered, got %d entries", len(infos))
	}
	if infos[0].Name != models.GatewayStripe {
		t.Fatalf("expected stripe to survive discovery, got %s", infos[0].Name)
	}
	if len(infos[0].RequiredCredentials) == 0 {
		t.Fatalf("expected required credentials metadata")
	}
}

func TestRegistryInstantiateValidation(t *testing.T) {
	repo := newFakeRepo()
	registry := NewRegistry(repo)

	if _, err := registry.Instantiate(nil, ""); err == nil {
		t.Fatalf("expected an error with neither config nor name")
	}
	cfg := &models.GatewayConfig{GatewayName: models.GatewayStripe}
	if _, err := registry.Instantiate(cfg, models.GatewayStripe); err == nil {
		t.Fatalf("expected an error with both config and name")
	}
	if _, err := registry.Instantiate(nil, "nope"); err == nil {
		t.Fatalf("expected an error for an unknown gateway name")
	}
}

func TestRegistryResolveForUser(t *testing.T) {
	repo := newFakeRepo()
	repo.configs = []models.GatewayConfig{
		{ID: "a", UserID: 1, GatewayName: models.GatewayStripe, IsActive: true},
		{ID: "b", UserID: 1, GatewayName: models.GatewayPayPal, IsActive: true, IsDefault: true},
		{ID: "c", UserID: 2, GatewayName: models.GatewayStripe, IsActive: false},
	}
	registry := NewRegistry(repo)

	cfg, err := registry.ResolveForUser(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || cfg.ID != "b" {
		t.Fatalf("expected the default config to win, got %+v", cfg)
	}

	cfg, err = registry.ResolveForUser(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for a user with no active gateways")
	}

	repo.configs[0].IsDefault = false
	repo.configs[1].IsDefault = false
	cfg, err = registry.ResolveForUser(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || cfg.ID != "a" {
		t.Fatalf("expected the first active config, got %+v", cfg)
	}
}
