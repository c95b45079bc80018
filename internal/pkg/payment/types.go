package payment

import (
	"github.com/billmate/billmate/app/models"
)

// Status values reported by status queries that fall outside the
// persisted payment state machine.
const (
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// SessionResult is the provider-specific payload returned to the payer
// client after a successful session creation.
type SessionResult struct {
	PaymentID             string  `json:"payment_id"`
	ClientSecret          string  `json:"client_secret,omitempty"`
	CheckoutURL           string  `json:"checkout_url,omitempty"`
	ProviderPaymentID     string  `json:"payment_intent_id,omitempty"`
	SessionID             string  `json:"session_id,omitempty"`
	PublishableKey        string  `json:"publishable_key,omitempty"`
	Currency              string  `json:"currency"`
	PlatformFee           float64 `json:"platform_fee,omitempty"`
	PlatformFeePercentage float64 `json:"platform_fee_percentage,omitempty"`
	TotalWithFee          float64 `json:"total_with_fee,omitempty"`
}

// GatewayError is the structured failure a plugin returns instead of
// letting provider faults escape the boundary. PaymentID references the
// failed payment record when one was persisted for the attempt.
type GatewayError struct {
	Message   string
	PaymentID string
}

func (e *GatewayError) Error() string {
	return e.Message
}

// WebhookResult reports the outcome of processing one webhook delivery.
// A duplicate delivery is a success with no payment attached.
type WebhookResult struct {
	Success bool
	Message string
	Payment *models.InvoicePayment
}

// RefundResult reports the outcome of a refund attempt.
type RefundResult struct {
	Success  bool
	Message  string
	RefundID string
}

// WebhookRequest carries the provider's raw callback payload.
type WebhookRequest struct {
	Body    []byte
	Headers map[string]string
}

// Header returns a header value or empty string.
func (r WebhookRequest) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers[key]
}
