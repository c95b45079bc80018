package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/env"
	"github.com/billmate/billmate/internal/pkg/security"
)

// The public invoice endpoints back the hosted payment page: the payer
// follows an emailed link and is not authenticated. Only what the
// payer needs is exposed.

// HandlePublicInvoice returns the payer-facing view of an invoice.
func HandlePublicInvoice(c *fiber.Ctx) error {
	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByID(c.Params("invoiceID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}

	items := make([]fiber.Map, 0, len(invoice.Items))
	for _, it := range invoice.Items {
		items = append(items, fiber.Map{
			"description": it.Description,
			"quantity":    it.Quantity,
			"unit_price":  it.UnitPrice,
			"amount":      it.Amount,
		})
	}

	clientName := ""
	if invoice.Client != nil {
		clientName = invoice.Client.Name
	}

	return c.JSON(fiber.Map{
		"id":             invoice.ID,
		"invoice_number": invoice.InvoiceNumber,
		"client_name":    clientName,
		"issue_date":     invoice.IssueDate,
		"due_date":       invoice.DueDate,
		"status":         invoice.Status,
		"subtotal":       invoice.Subtotal,
		"tax_rate":       invoice.TaxRate,
		"tax_amount":     invoice.TaxAmount,
		"total":          invoice.Total,
		"items":          items,
	})
}

// HandleInvoiceGateway returns the public gateway details the payment
// page needs to initialize the provider's client-side SDK.
func HandleInvoiceGateway(c *fiber.Ctx) error {
	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByID(c.Params("invoiceID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}

	cfg, err := paymentService.Registry().ResolveForUser(invoice.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve gateway"})
	}
	if cfg == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No payment gateway configured for this invoice"})
	}

	creds, err := security.DecryptCredentials(cfg.CredentialsEnc, env.GetEnv("CREDENTIALS_SECRET", ""))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load gateway credentials"})
	}

	return c.JSON(fiber.Map{
		"gateway_name":    cfg.GatewayName,
		"publishable_key": creds["publishable_key"],
	})
}

// HandleInvoiceGatewayCheck reports whether the invoice owner can
// accept online payments at all.
func HandleInvoiceGatewayCheck(c *fiber.Ctx) error {
	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByID(c.Params("invoiceID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}

	cfg, err := paymentService.Registry().ResolveForUser(invoice.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve gateway"})
	}
	return c.JSON(fiber.Map{"configured": cfg != nil})
}
