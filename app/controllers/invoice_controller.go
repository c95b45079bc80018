package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/database"
	"github.com/billmate/billmate/internal/pkg/entitlements"
	"github.com/billmate/billmate/internal/pkg/statistics"
)

type invoiceItemRequest struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type invoiceRequest struct {
	ClientID      string               `json:"client_id"`
	InvoiceNumber string               `json:"invoice_number"`
	IssueDate     string               `json:"issue_date"` // YYYY-MM-DD
	DueDate       string               `json:"due_date"`   // YYYY-MM-DD
	TaxRate       float64              `json:"tax_rate"`
	Notes         string               `json:"notes"`
	Items         []invoiceItemRequest `json:"items"`
}

func (r *invoiceRequest) items() []models.InvoiceItem {
	items := make([]models.InvoiceItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, models.InvoiceItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Quantity * it.UnitPrice,
		})
	}
	return items
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

// HandleListInvoices lists the caller's invoices, optionally filtered
// by status.
func HandleListInvoices(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	offset, limit := parsePagination(c)
	invoices, total, err := repository.GetGlobalFactory().GetInvoiceRepository().
		GetByUserID(userCtx.UserID, c.Query("status"), offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoices"})
	}
	return c.JSON(fiber.Map{"invoices": invoices, "total": total})
}

// HandleGetInvoice returns one invoice with items and client.
func HandleGetInvoice(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetOwned(c.Params("invoiceID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}
	return c.JSON(invoice)
}

// HandleCreateInvoice creates an invoice with its line items. Plan
// limits are enforced before anything is written.
func HandleCreateInvoice(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req invoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}
	if req.ClientID == "" || req.InvoiceNumber == "" || len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "client_id, invoice_number and items are required"})
	}

	issueDate, err := parseDate(req.IssueDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "issue_date must be YYYY-MM-DD"})
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "due_date must be YYYY-MM-DD"})
	}

	factory := repository.GetGlobalFactory()
	if _, err := factory.GetClientRepository().GetByID(req.ClientID, userCtx.UserID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Unknown client"})
	}

	settings, err := models.GetOrCreateUserSettings(database.GetDB(), userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}
	count, err := factory.GetInvoiceRepository().CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check invoice limit"})
	}
	if !entitlements.CanCreateInvoice(settings, count) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Invoice limit reached for your plan"})
	}

	invoice := models.Invoice{
		UserID:        userCtx.UserID,
		ClientID:      req.ClientID,
		InvoiceNumber: req.InvoiceNumber,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Status:        models.InvoiceStatusUnpaid,
		TaxRate:       req.TaxRate,
		Notes:         req.Notes,
		Items:         req.items(),
	}
	invoice.RecalculateTotals()

	if err := factory.GetInvoiceRepository().Create(&invoice); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create invoice"})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// HandleUpdateInvoice updates invoice fields and, when items are
// included, replaces them and recomputes the totals.
func HandleUpdateInvoice(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetInvoiceRepository()
	invoice, err := repo.GetOwned(c.Params("invoiceID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}
	if invoice.IsPaid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Paid invoices cannot be edited"})
	}

	var req invoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}

	if req.InvoiceNumber != "" {
		invoice.InvoiceNumber = req.InvoiceNumber
	}
	if req.IssueDate != "" {
		if invoice.IssueDate, err = parseDate(req.IssueDate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "issue_date must be YYYY-MM-DD"})
		}
	}
	if req.DueDate != "" {
		if invoice.DueDate, err = parseDate(req.DueDate); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "due_date must be YYYY-MM-DD"})
		}
	}
	invoice.TaxRate = req.TaxRate
	invoice.Notes = req.Notes

	if len(req.Items) > 0 {
		if err := repo.ReplaceItems(invoice, req.items()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update invoice items"})
		}
	} else {
		invoice.RecalculateTotals()
	}

	if err := repo.Update(invoice); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update invoice"})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(invoice)
}

// HandleDeleteInvoice deletes an invoice and its items.
func HandleDeleteInvoice(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	err := repository.GetGlobalFactory().GetInvoiceRepository().Delete(c.Params("invoiceID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete invoice"})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(fiber.Map{"message": "Invoice deleted"})
}
