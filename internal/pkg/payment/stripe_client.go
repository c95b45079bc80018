package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/billmate/billmate/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

// maxStripeResponseSize caps how much of a provider response we read.
const maxStripeResponseSize = 1 << 20

// StripeClient is a minimal client for the Stripe REST API covering
// the calls the gateway needs. The base URL is configurable so tests
// can point it at a local server.
type StripeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewStripeClient creates a client authenticating with the given
// secret key.
func NewStripeClient(apiKey string) *StripeClient {
	return &StripeClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// StripePaymentIntent is the subset of the payment intent object the
// gateway consumes.
type StripePaymentIntent struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// StripeEvent is a provider event fetched back from the API during
// webhook verification.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// StripeRefund is the subset of the refund object the gateway consumes.
type StripeRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreatePaymentIntent creates a payment intent for the given amount in
// minor units.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*StripePaymentIntent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var intent StripePaymentIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetPaymentIntent fetches the current state of a payment intent.
func (c *StripeClient) GetPaymentIntent(ctx context.Context, id string) (*StripePaymentIntent, error) {
	var intent StripePaymentIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// GetEvent re-fetches an event by ID. This authenticated read is what
// proves a webhook delivery actually originated from the provider.
func (c *StripeClient) GetEvent(ctx context.Context, id string) (*StripeEvent, error) {
	var event StripeEvent
	if err := c.do(ctx, http.MethodGet, "/v1/events/"+url.PathEscape(id), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateRefund refunds a payment intent in full.
func (c *StripeClient) CreateRefund(ctx context.Context, paymentIntentID, reason string) (*StripeRefund, error) {
	form := url.Values{}
	form.Set("payment_intent", paymentIntentID)
	if reason != "" {
		form.Set("reason", reason)
	}

	var refund StripeRefund
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", form, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxStripeResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr stripeErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe API error: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode stripe response: %w", err)
		}
	}
	return nil
}
