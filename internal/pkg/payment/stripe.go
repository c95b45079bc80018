package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/internal/pkg/env"
	"github.com/billmate/billmate/internal/pkg/security"
)

// StripeGateway charges invoices through Stripe payment intents. A
// merchant-configured instance uses the merchant's own keys; when the
// invoice owner opted in and platform credentials are configured, the
// platform account is charged instead and a surcharge is added.
type StripeGateway struct {
	repo           Repository
	cfg            *models.GatewayConfig
	client         *StripeClient
	publishableKey string
	platform       *platformAccount
}

type platformAccount struct {
	client         *StripeClient
	publishableKey string
	feePercent     float64
}

// NewStripeGateway builds a gateway from a merchant config. With a nil
// config it falls back to platform or test credentials, which is
// sufficient for webhook handling and discovery.
func NewStripeGateway(cfg *models.GatewayConfig, repo Repository) (Gateway, error) {
	g := &StripeGateway{repo: repo, cfg: cfg}

	if key := env.GetEnv("PLATFORM_GATEWAY_SECRET_KEY", ""); key != "" {
		feePercent, err := strconv.ParseFloat(env.GetEnv("PLATFORM_GATEWAY_FEE_PERCENT", "1.0"), 64)
		if err != nil || feePercent < 0 {
			feePercent = 1.0
		}
		g.platform = &platformAccount{
			client:         NewStripeClient(key),
			publishableKey: env.GetEnv("PLATFORM_GATEWAY_PUBLISHABLE_KEY", ""),
			feePercent:     feePercent,
		}
	}

	if cfg != nil {
		secret := env.GetEnv("CREDENTIALS_SECRET", "")
		creds, err := security.DecryptCredentials(cfg.CredentialsEnc, secret)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt stripe credentials: %w", err)
		}
		if creds["secret_key"] == "" {
			return nil, errors.New("stripe config is missing secret_key")
		}
		g.client = NewStripeClient(creds["secret_key"])
		g.publishableKey = creds["publishable_key"]
		return g, nil
	}

	// Anonymous instance: platform keys first, then test keys.
	if g.platform != nil {
		g.client = g.platform.client
		g.publishableKey = g.platform.publishableKey
		return g, nil
	}
	if key := env.GetEnv("STRIPE_TEST_SECRET_KEY", ""); key != "" {
		g.client = NewStripeClient(key)
		g.publishableKey = env.GetEnv("STRIPE_TEST_PUBLISHABLE_KEY", "")
		return g, nil
	}
	return nil, errors.New("no stripe credentials configured")
}

func (g *StripeGateway) Name() string {
	return models.GatewayStripe
}

func (g *StripeGateway) DisplayName() string {
	return "Stripe"
}

func (g *StripeGateway) RequiredCredentials() []string {
	return []string{"secret_key", "publishable_key"}
}

type lineItem struct {
	Name        string
	AmountMinor int64
}

// buildLineItems converts invoice items to minor-unit charge lines,
// appending a tax line when the invoice carries tax.
func buildLineItems(invoice *models.Invoice) []lineItem {
	items := make([]lineItem, 0, len(invoice.Items)+1)
	for _, it := range invoice.Items {
		items = append(items, lineItem{
			Name:        it.Description,
			AmountMinor: toMinorUnits(it.Quantity * it.UnitPrice),
		})
	}
	if invoice.TaxAmount > 0 {
		items = append(items, lineItem{
			Name:        fmt.Sprintf("Tax (%.2f%%)", invoice.TaxRate),
			AmountMinor: toMinorUnits(invoice.TaxAmount),
		})
	}
	return items
}

func toMinorUnits(v float64) int64 {
	return int64(math.Round(v * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (g *StripeGateway) CreatePaymentSession(ctx context.Context, invoice *models.Invoice, successURL, cancelURL, currency string) (*SessionResult, *GatewayError) {
	usePlatform := false
	if g.platform != nil {
		if settings, err := g.repo.GetUserSettings(invoice.UserID); err == nil && settings.AllowPlatformGateway {
			usePlatform = true
		}
	}

	client := g.client
	publishableKey := g.publishableKey
	feePercent := 0.0
	if usePlatform {
		client = g.platform.client
		publishableKey = g.platform.publishableKey
		feePercent = g.platform.feePercent
	}

	var amountMinor int64
	for _, li := range buildLineItems(invoice) {
		amountMinor += li.AmountMinor
	}

	platformFee := round2(invoice.Total * feePercent / 100)
	amountMinor += toMinorUnits(platformFee)
	totalWithFee := float64(amountMinor) / 100

	metadata := map[string]string{
		"invoice_id":             invoice.ID,
		"invoice_number":         invoice.InvoiceNumber,
		"user_id":                strconv.FormatUint(uint64(invoice.UserID), 10),
		"using_platform_gateway": strconv.FormatBool(usePlatform),
	}
	if usePlatform {
		metadata["platform_fee"] = fmt.Sprintf("%.2f", platformFee)
	}

	// The record tracks the invoice total; the platform surcharge lives
	// only in metadata and the session payload.
	record := &models.InvoicePayment{
		InvoiceID:   invoice.ID,
		GatewayName: g.Name(),
		Amount:      invoice.Total,
		Currency:    currency,
		Status:      models.PaymentStatusPending,
		Metadata:    models.MetadataMap{"using_platform_gateway": strconv.FormatBool(usePlatform)},
	}
	if g.cfg != nil {
		record.GatewayID = &g.cfg.ID
	}

	intent, err := client.CreatePaymentIntent(ctx, amountMinor, currency, metadata)
	if err != nil {
		record.Status = models.PaymentStatusFailed
		msg := err.Error()
		record.ErrorMessage = &msg
		if createErr := g.repo.CreatePayment(record); createErr != nil {
			return nil, &GatewayError{Message: fmt.Sprintf("Failed to create payment session: %v", err)}
		}
		return nil, &GatewayError{
			Message:   fmt.Sprintf("Failed to create payment session: %v", err),
			PaymentID: record.ID,
		}
	}

	record.GatewayPaymentID = &intent.ID
	record.Metadata["payment_intent_id"] = intent.ID
	if usePlatform {
		record.Metadata["platform_fee"] = fmt.Sprintf("%.2f", platformFee)
	}
	if err := g.repo.CreatePayment(record); err != nil {
		return nil, &GatewayError{Message: fmt.Sprintf("Failed to record payment: %v", err)}
	}

	result := &SessionResult{
		PaymentID:         record.ID,
		ClientSecret:      intent.ClientSecret,
		ProviderPaymentID: intent.ID,
		PublishableKey:    publishableKey,
		Currency:          currency,
	}
	if usePlatform {
		result.PlatformFee = platformFee
		result.PlatformFeePercentage = feePercent
		result.TotalWithFee = totalWithFee
	}
	return result, nil
}

// stripeEventObject is the part of an event's data object we dispatch
// on, shared across checkout session and payment intent events.
type stripeEventObject struct {
	ID               string `json:"id"`
	Object           string `json:"object"`
	PaymentIntent    string `json:"payment_intent"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (g *StripeGateway) HandleWebhook(ctx context.Context, req WebhookRequest) WebhookResult {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil || envelope.ID == "" {
		return WebhookResult{Success: false, Message: "Invalid webhook payload: missing event id"}
	}

	exists, err := g.repo.WebhookEventExists(envelope.ID)
	if err != nil {
		return WebhookResult{Success: false, Message: "Failed to check event: " + err.Error()}
	}
	if exists {
		return WebhookResult{Success: true, Message: "Event already processed"}
	}

	// Re-fetch the event over the authenticated API. A payload naming an
	// event the provider does not know is rejected here.
	event, err := g.client.GetEvent(ctx, envelope.ID)
	if err != nil {
		return WebhookResult{Success: false, Message: "Failed to verify event: " + err.Error()}
	}

	record := &models.PaymentWebhookEvent{
		GatewayName: g.Name(),
		EventType:   event.Type,
		EventID:     event.ID,
		Payload:     string(req.Body),
	}
	created, err := g.repo.CreateWebhookEventIfNotExists(record)
	if err != nil {
		return WebhookResult{Success: false, Message: "Failed to record event: " + err.Error()}
	}
	if !created {
		// A concurrent delivery won the insert race.
		return WebhookResult{Success: true, Message: "Event already processed"}
	}

	var obj stripeEventObject
	if len(event.Data.Object) > 0 {
		// Dispatch still happens on the event type if the object does
		// not parse; matching will simply find nothing.
		_ = json.Unmarshal(event.Data.Object, &obj)
	}

	switch event.Type {
	case "checkout.session.completed":
		payment := g.findPayment(obj.ID, obj.PaymentIntent)
		if payment == nil {
			return WebhookResult{Success: false, Message: "Payment not found for session"}
		}
		if obj.PaymentIntent != "" && payment.GatewayPaymentID == nil {
			payment.GatewayPaymentID = &obj.PaymentIntent
		}
		return g.completeFromWebhook(record, payment)

	case "payment_intent.succeeded":
		payment := g.findPayment("", obj.ID)
		if payment == nil {
			return WebhookResult{Success: false, Message: "Payment not found for payment intent"}
		}
		return g.completeFromWebhook(record, payment)

	case "payment_intent.payment_failed":
		payment := g.findPayment("", obj.ID)
		if payment == nil {
			return WebhookResult{Success: false, Message: "Payment not found for payment intent"}
		}
		payment.Status = models.PaymentStatusFailed
		msg := "Payment failed"
		if obj.LastPaymentError != nil && obj.LastPaymentError.Message != "" {
			msg = obj.LastPaymentError.Message
		}
		payment.ErrorMessage = &msg
		if err := g.repo.SavePayment(payment); err != nil {
			return WebhookResult{Success: false, Message: "Failed to update payment: " + err.Error()}
		}
		if err := g.repo.MarkWebhookProcessed(record, &payment.ID); err != nil {
			return WebhookResult{Success: false, Message: "Failed to mark event processed: " + err.Error()}
		}
		return WebhookResult{Success: true, Message: "Payment failure recorded", Payment: payment}

	default:
		// Unrecognized event types are acknowledged so the provider
		// stops retrying them.
		if err := g.repo.MarkWebhookProcessed(record, nil); err != nil {
			return WebhookResult{Success: false, Message: "Failed to mark event processed: " + err.Error()}
		}
		return WebhookResult{Success: true, Message: fmt.Sprintf("Event %s recorded but not processed", event.Type)}
	}
}

func (g *StripeGateway) completeFromWebhook(record *models.PaymentWebhookEvent, payment *models.InvoicePayment) WebhookResult {
	method := "card"
	payment.PaymentMethod = &method
	if err := g.repo.CompletePayment(payment); err != nil {
		return WebhookResult{Success: false, Message: "Failed to complete payment: " + err.Error()}
	}
	if err := g.repo.MarkWebhookProcessed(record, &payment.ID); err != nil {
		return WebhookResult{Success: false, Message: "Failed to mark event processed: " + err.Error()}
	}
	return WebhookResult{Success: true, Message: "Payment completed", Payment: payment}
}

// findPayment matches a provider callback to a local record: checkout
// session id first, then the provider payment id, then the intent id
// echoed back through metadata.
func (g *StripeGateway) findPayment(sessionID, paymentIntentID string) *models.InvoicePayment {
	if sessionID != "" {
		if p, err := g.repo.FindPaymentBySessionID(sessionID); err == nil {
			return p
		}
	}
	if paymentIntentID != "" {
		if p, err := g.repo.FindPaymentByProviderPaymentID(paymentIntentID); err == nil {
			return p
		}
		if p, err := g.repo.FindPaymentByMetadata("payment_intent_id", paymentIntentID); err == nil {
			return p
		}
	}
	return nil
}

func (g *StripeGateway) GetPaymentStatus(ctx context.Context, paymentID string) string {
	payment, err := g.repo.GetPayment(paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StatusNotFound
		}
		return StatusError
	}
	if payment.GatewayPaymentID == nil {
		return payment.Status
	}

	intent, err := g.clientForPayment(payment).GetPaymentIntent(ctx, *payment.GatewayPaymentID)
	if err != nil {
		return StatusError
	}

	mapped := mapStripeStatus(intent.Status, payment.Status)
	if mapped == payment.Status {
		return payment.Status
	}

	if mapped == models.PaymentStatusCompleted {
		if err := g.repo.CompletePayment(payment); err != nil {
			return StatusError
		}
		return payment.Status
	}

	payment.Status = mapped
	if mapped == models.PaymentStatusFailed && intent.LastPaymentError != nil {
		msg := intent.LastPaymentError.Message
		payment.ErrorMessage = &msg
	}
	if err := g.repo.SavePayment(payment); err != nil {
		return StatusError
	}
	return payment.Status
}

// mapStripeStatus translates a provider intent status into the local
// state machine, leaving the local status untouched for statuses we do
// not recognize.
func mapStripeStatus(stripeStatus, current string) string {
	switch stripeStatus {
	case "succeeded":
		return models.PaymentStatusCompleted
	case "processing":
		return models.PaymentStatusProcessing
	case "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return models.PaymentStatusPending
	case "canceled":
		return models.PaymentStatusFailed
	default:
		return current
	}
}

func (g *StripeGateway) RefundPayment(ctx context.Context, p *models.InvoicePayment) RefundResult {
	if p.GatewayPaymentID == nil {
		return RefundResult{Success: false, Message: "No provider payment ID available for refund"}
	}

	refund, err := g.clientForPayment(p).CreateRefund(ctx, *p.GatewayPaymentID, "requested_by_customer")
	if err != nil {
		return RefundResult{Success: false, Message: "Refund failed: " + err.Error()}
	}

	p.Status = models.PaymentStatusRefunded
	if p.Metadata == nil {
		p.Metadata = models.MetadataMap{}
	}
	p.Metadata["refund_id"] = refund.ID
	p.Metadata["refund_status"] = refund.Status
	if err := g.repo.SavePayment(p); err != nil {
		return RefundResult{Success: false, Message: "Refund succeeded but recording it failed: " + err.Error()}
	}
	return RefundResult{Success: true, Message: "Payment refunded", RefundID: refund.ID}
}

// clientForPayment routes provider calls to the account that took the
// charge: payments made through the platform account must be queried
// and refunded there.
func (g *StripeGateway) clientForPayment(p *models.InvoicePayment) *StripeClient {
	if g.platform != nil && p.Metadata["using_platform_gateway"] == "true" {
		return g.platform.client
	}
	return g.client
}
