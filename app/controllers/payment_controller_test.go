package controllers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/internal/pkg/payment"
)

// stubGateway returns canned webhook results so the HTTP contract can
// be tested without a provider.
type stubGateway struct {
	result payment.WebhookResult
}

func (g stubGateway) Name() string                  { return "testgw" }
func (g stubGateway) DisplayName() string           { return "Test Gateway" }
func (g stubGateway) RequiredCredentials() []string { return []string{"secret_key"} }

func (g stubGateway) CreatePaymentSession(ctx context.Context, invoice *models.Invoice, successURL, cancelURL, currency string) (*payment.SessionResult, *payment.GatewayError) {
	return nil, &payment.GatewayError{Message: "not implemented"}
}

func (g stubGateway) HandleWebhook(ctx context.Context, req payment.WebhookRequest) payment.WebhookResult {
	return g.result
}

func (g stubGateway) GetPaymentStatus(ctx context.Context, paymentID string) string {
	return payment.StatusNotFound
}

func (g stubGateway) RefundPayment(ctx context.Context, p *models.InvoicePayment) payment.RefundResult {
	return payment.RefundResult{Success: false, Message: "not implemented"}
}

func newWebhookTestApp(result payment.WebhookResult) *fiber.App {
	registry := payment.NewRegistry(nil)
	registry.Register(payment.Entry{
		Name:        "testgw",
		DisplayName: "Test Gateway",
		New: func(cfg *models.GatewayConfig, repo payment.Repository) (payment.Gateway, error) {
			return stubGateway{result: result}, nil
		},
	})
	SetPaymentService(payment.NewService(registry, nil))

	app := fiber.New()
	app.Post("/payment/webhook/:gateway", HandlePaymentWebhook)
	return app
}

func TestWebhookEndpointReturnsBare200(t *testing.T) {
	app := newWebhookTestApp(payment.WebhookResult{Success: true, Message: "Payment completed"})

	req := httptest.NewRequest("POST", "/payment/webhook/testgw", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebhookEndpointReturnsPlainTextFailure(t *testing.T) {
	app := newWebhookTestApp(payment.WebhookResult{Success: false, Message: "Payment not found for session"})

	req := httptest.NewRequest("POST", "/payment/webhook/testgw", strings.NewReader(`{"id":"evt_2"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "Payment not found for session" {
		t.Fatalf("expected the plain-text reason, got %q", string(body))
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "application/json") {
		t.Fatalf("expected a non-JSON failure body, got content type %q", ct)
	}
}

func TestWebhookEndpointUnknownGateway(t *testing.T) {
	app := newWebhookTestApp(payment.WebhookResult{Success: true})

	req := httptest.NewRequest("POST", "/payment/webhook/doesnotexist", strings.NewReader(`{"id":"evt_3"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown gateway, got %d", resp.StatusCode)
	}
}
