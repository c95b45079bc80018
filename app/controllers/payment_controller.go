package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/entitlements"
	"github.com/billmate/billmate/internal/pkg/payment"
	"github.com/billmate/billmate/internal/pkg/statistics"
)

// HandlePaymentWebhook receives provider callbacks. The route is
// unauthenticated; verification happens inside the gateway by
// re-fetching the event from the provider. The response is a bare 200
// on success and a 400 with a plain-text reason on failure, which is
// what providers key their retry logic on.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	gatewayName := c.Params("gateway")

	headers := map[string]string{}
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	result := paymentService.RouteWebhook(c.Context(), gatewayName, payment.WebhookRequest{
		Body:    c.Body(),
		Headers: headers,
	})
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).SendString(result.Message)
	}
	return c.SendStatus(fiber.StatusOK)
}

type createSessionRequest struct {
	InvoiceID  string `json:"invoice_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
	GatewayID  string `json:"gateway_id"`
	Currency   string `json:"currency"`
}

// HandleCreatePaymentSession starts a checkout for one of the caller's
// invoices.
func HandleCreatePaymentSession(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil || req.InvoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "invoice_id is required"})
	}

	if !entitlements.AllowsPaymentCollection(entitlements.EffectivePlan(userCtx.Plan)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Your plan does not include payment collection"})
	}

	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetOwned(req.InvoiceID, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}
	if invoice.IsPaid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invoice is already paid"})
	}

	var explicit *models.GatewayConfig
	if req.GatewayID != "" {
		cfg, err := paymentService.Repo().GetGatewayConfig(req.GatewayID)
		if err != nil || cfg.UserID != userCtx.UserID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Gateway config not found"})
		}
		if !cfg.IsActive {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Gateway config is inactive"})
		}
		explicit = cfg
	}

	result, err := paymentService.CreateSession(c.Context(), invoice, req.SuccessURL, req.CancelURL, req.Currency, explicit)
	if err != nil {
		if errors.Is(err, payment.ErrNoGatewayConfigured) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no payment gateway configured"})
		}
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) {
			resp := fiber.Map{"error": gwErr.Message}
			if gwErr.PaymentID != "" {
				resp["payment_id"] = gwErr.PaymentID
			}
			return c.Status(fiber.StatusBadRequest).JSON(resp)
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(result)
}

// HandleGetPaymentStatus returns the reconciled status of one payment.
func HandleGetPaymentStatus(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	paymentID := c.Params("paymentID")
	if _, err := paymentService.OwnedPayment(paymentID, userCtx.UserID); err != nil {
		return paymentOwnershipError(c, err)
	}

	status := paymentService.GetPaymentStatus(c.Context(), paymentID)
	switch status {
	case payment.StatusNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Payment not found"})
	case payment.StatusError:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to query payment provider"})
	default:
		return c.JSON(fiber.Map{"status": status})
	}
}

// HandleUpdatePaymentStatus applies a manual status change.
func HandleUpdatePaymentStatus(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "status is required"})
	}

	paymentID := c.Params("paymentID")
	if _, err := paymentService.OwnedPayment(paymentID, userCtx.UserID); err != nil {
		return paymentOwnershipError(c, err)
	}

	updated, err := paymentService.UpdatePaymentStatus(c.Context(), paymentID, req.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(updated)
}

// HandleRefundPayment refunds a completed payment. Ownership is
// verified before the provider is contacted.
func HandleRefundPayment(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	paymentID := c.Params("paymentID")
	if _, err := paymentService.OwnedPayment(paymentID, userCtx.UserID); err != nil {
		return paymentOwnershipError(c, err)
	}

	result := paymentService.RefundPayment(c.Context(), paymentID)
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": result.Message})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(fiber.Map{"message": result.Message, "refund_id": result.RefundID})
}

// HandleCapturePayment finalizes a payment confirmed out-of-band.
func HandleCapturePayment(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		OrderID string `json:"order_id"`
	}
	_ = c.BodyParser(&req)

	paymentID := c.Params("paymentID")
	if _, err := paymentService.OwnedPayment(paymentID, userCtx.UserID); err != nil {
		return paymentOwnershipError(c, err)
	}

	captured, err := paymentService.CapturePayment(c.Context(), paymentID, req.OrderID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(fiber.Map{"message": "Payment captured", "payment": captured})
}

// HandleListInvoicePayments lists all payment attempts for one of the
// caller's invoices.
func HandleListInvoicePayments(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	invoiceID := c.Params("invoiceID")
	if _, err := repository.GetGlobalFactory().GetInvoiceRepository().GetOwned(invoiceID, userCtx.UserID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
	}

	payments, err := paymentService.Repo().ListPaymentsByInvoice(invoiceID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}
	return c.JSON(fiber.Map{"payments": payments})
}

// HandleListAllPayments lists the caller's payments across invoices.
func HandleListAllPayments(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	offset, limit := parsePagination(c)
	payments, total, err := paymentService.Repo().ListPaymentsByOwner(userCtx.UserID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payments"})
	}
	return c.JSON(fiber.Map{"payments": payments, "total": total})
}

func paymentOwnershipError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, payment.ErrPaymentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Payment not found"})
	case errors.Is(err, payment.ErrNotOwner):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Payment belongs to another user"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payment"})
	}
}
