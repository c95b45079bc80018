package payment

import (
	"context"

	"github.com/billmate/billmate/app/models"
)

// Gateway is the contract every payment provider plugin implements.
// Implementations never panic across this boundary; provider and
// configuration faults are reported through the structured results.
type Gateway interface {
	// Name returns the stable registry identifier (e.g. "stripe").
	Name() string

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// RequiredCredentials lists the credential keys a merchant must
	// supply to configure this gateway.
	RequiredCredentials() []string

	// CreatePaymentSession starts a checkout for the given invoice and
	// persists a pending payment record. The currency is already
	// resolved and lowercased by the caller.
	CreatePaymentSession(ctx context.Context, invoice *models.Invoice, successURL, cancelURL, currency string) (*SessionResult, *GatewayError)

	// HandleWebhook processes one provider callback delivery. Duplicate
	// deliveries succeed without touching any payment record.
	HandleWebhook(ctx context.Context, req WebhookRequest) WebhookResult

	// GetPaymentStatus pulls the provider's current view of a payment
	// and reconciles the local record. It returns the (possibly
	// updated) local status, StatusNotFound for unknown payment IDs or
	// StatusError when the provider cannot be reached.
	GetPaymentStatus(ctx context.Context, paymentID string) string

	// RefundPayment refunds a completed payment at the provider and
	// marks the local record refunded. Preconditions (completed status)
	// are enforced by the caller.
	RefundPayment(ctx context.Context, p *models.InvoicePayment) RefundResult
}

// GatewayInfo is the static metadata exposed for gateway discovery.
type GatewayInfo struct {
	Name                string   `json:"name"`
	DisplayName         string   `json:"display_name"`
	LogoURL             string   `json:"logo_url,omitempty"`
	RequiredCredentials []string `json:"required_credentials"`
}
