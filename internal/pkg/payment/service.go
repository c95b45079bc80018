package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
)

// ErrNoGatewayConfigured is returned when a merchant has no active
// payment gateway and none was requested explicitly.
var ErrNoGatewayConfigured = errors.New("no payment gateway configured")

// ErrPaymentNotFound is returned for unknown payment IDs.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrNotOwner is returned when a caller acts on a payment whose
// invoice belongs to someone else.
var ErrNotOwner = errors.New("payment does not belong to this user")

// Service is the stateless orchestration façade in front of the
// gateway registry. Controllers talk to this, never to plugins.
type Service struct {
	registry *Registry
	repo     Repository
}

// NewService wires the service to its registry and repository.
func NewService(registry *Registry, repo Repository) *Service {
	return &Service{registry: registry, repo: repo}
}

// Registry exposes the gateway catalog for discovery endpoints.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Repo exposes the payment repository for read endpoints.
func (s *Service) Repo() Repository {
	return s.repo
}

// ResolveCurrency picks the charge currency: the explicit request
// value, else the invoice owner's configured currency, else "usd".
// The result is always lowercase.
func (s *Service) ResolveCurrency(explicit string, ownerID uint) string {
	currency := strings.TrimSpace(explicit)
	if currency == "" {
		if settings, err := s.repo.GetUserSettings(ownerID); err == nil {
			currency = settings.Currency
		}
	}
	if currency == "" {
		currency = "usd"
	}
	return strings.ToLower(currency)
}

// CreateSession starts a checkout for an invoice. The gateway is the
// explicitly requested config when given, otherwise the owner's
// resolved default.
func (s *Service) CreateSession(ctx context.Context, invoice *models.Invoice, successURL, cancelURL, currency string, explicit *models.GatewayConfig) (*SessionResult, error) {
	cfg := explicit
	if cfg == nil {
		resolved, err := s.registry.ResolveForUser(invoice.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve gateway: %w", err)
		}
		if resolved == nil {
			return nil, ErrNoGatewayConfigured
		}
		cfg = resolved
	}

	gw, err := s.registry.Instantiate(cfg, "")
	if err != nil {
		return nil, err
	}

	result, gwErr := gw.CreatePaymentSession(ctx, invoice, successURL, cancelURL, s.ResolveCurrency(currency, invoice.UserID))
	if gwErr != nil {
		return nil, gwErr
	}
	return result, nil
}

// RouteWebhook dispatches a provider callback to the named gateway.
// Webhooks arrive without user context, so an anonymous instance
// handles them.
func (s *Service) RouteWebhook(ctx context.Context, gatewayName string, req WebhookRequest) WebhookResult {
	gw, err := s.registry.Instantiate(nil, gatewayName)
	if err != nil {
		return WebhookResult{Success: false, Message: err.Error()}
	}
	return gw.HandleWebhook(ctx, req)
}

// GetPaymentStatus reconciles and returns a payment's status. The
// gateway is resolved from the record's stored gateway name so status
// checks keep working after the merchant reconfigures or removes the
// gateway config.
func (s *Service) GetPaymentStatus(ctx context.Context, paymentID string) string {
	payment, err := s.repo.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StatusNotFound
		}
		return StatusError
	}
	gw, err := s.registry.Instantiate(nil, payment.GatewayName)
	if err != nil {
		return StatusError
	}
	return gw.GetPaymentStatus(ctx, paymentID)
}

// RefundPayment refunds a completed payment. The precondition is
// enforced before any provider call is made; the invoice is never
// reverted to unpaid.
func (s *Service) RefundPayment(ctx context.Context, paymentID string) RefundResult {
	payment, err := s.repo.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RefundResult{Success: false, Message: "Payment not found"}
		}
		return RefundResult{Success: false, Message: "Failed to load payment: " + err.Error()}
	}
	if payment.Status != models.PaymentStatusCompleted {
		return RefundResult{Success: false, Message: fmt.Sprintf("Cannot refund payment with status %s", payment.Status)}
	}

	gw, err := s.registry.Instantiate(nil, payment.GatewayName)
	if err != nil {
		return RefundResult{Success: false, Message: err.Error()}
	}
	return gw.RefundPayment(ctx, payment)
}

// CapturePayment finalizes a payment that was approved out-of-band
// (wallet-style flows where the client confirms an order ID).
func (s *Service) CapturePayment(ctx context.Context, paymentID, orderID string) (*models.InvoicePayment, error) {
	payment, err := s.repo.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !payment.CanTransitionTo(models.PaymentStatusCompleted) {
		return nil, fmt.Errorf("cannot capture payment with status %s", payment.Status)
	}
	if orderID != "" {
		payment.GatewayPaymentID = &orderID
	}
	if err := s.repo.CompletePayment(payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// UpdatePaymentStatus applies a manual status change, honoring the
// state machine. Moving to completed runs the full completion path.
func (s *Service) UpdatePaymentStatus(ctx context.Context, paymentID, target string) (*models.InvoicePayment, error) {
	payment, err := s.repo.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !payment.CanTransitionTo(target) {
		return nil, fmt.Errorf("cannot transition payment from %s to %s", payment.Status, target)
	}
	if target == models.PaymentStatusCompleted {
		if err := s.repo.CompletePayment(payment); err != nil {
			return nil, err
		}
		return payment, nil
	}
	payment.Status = target
	if err := s.repo.SavePayment(payment); err != nil {
		return nil, err
	}
	return payment, nil
}

// OwnedPayment loads a payment and verifies the invoice owner. It is
// the controllers' ownership check before any provider-touching call.
func (s *Service) OwnedPayment(paymentID string, userID uint) (*models.InvoicePayment, error) {
	payment, err := s.repo.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	invoice, err := s.repo.GetInvoice(payment.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.UserID != userID {
		return nil, ErrNotOwner
	}
	return payment, nil
}
