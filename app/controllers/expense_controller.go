package controllers

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/receipts"
	"github.com/billmate/billmate/internal/pkg/statistics"
)

var receiptClient *receipts.Client
var receiptConfig *receipts.Config

// SetReceiptStorage injects the receipt storage client. A nil client
// disables receipt uploads.
func SetReceiptStorage(client *receipts.Client, cfg *receipts.Config) {
	receiptClient = client
	receiptConfig = cfg
}

type expenseRequest struct {
	CategoryID  *uint   `json:"category_id"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Description string  `json:"description"`
	Notes       string  `json:"notes"`
}

// HandleListExpenses lists the caller's expenses, optionally filtered
// by category.
func HandleListExpenses(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var categoryID *uint
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "category_id must be numeric"})
		}
		v := uint(id)
		categoryID = &v
	}

	offset, limit := parsePagination(c)
	expenses, total, err := repository.GetGlobalFactory().GetExpenseRepository().
		GetByUserID(userCtx.UserID, categoryID, offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load expenses"})
	}
	return c.JSON(fiber.Map{"expenses": expenses, "total": total})
}

// HandleCreateExpense creates an expense.
func HandleCreateExpense(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req expenseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}
	if req.Amount <= 0 || req.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "amount and description are required"})
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "date must be YYYY-MM-DD"})
	}

	expense := models.Expense{
		UserID:      userCtx.UserID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Notes:       req.Notes,
	}
	if err := repository.GetGlobalFactory().GetExpenseRepository().Create(&expense); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create expense"})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.Status(fiber.StatusCreated).JSON(expense)
}

// HandleUpdateExpense updates an expense.
func HandleUpdateExpense(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetExpenseRepository()
	expense, err := repo.GetByID(c.Params("expenseID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Expense not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load expense"})
	}

	var req expenseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}
	if req.Amount > 0 {
		expense.Amount = req.Amount
	}
	if req.Date != "" {
		if expense.Date, err = parseDate(req.Date); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "date must be YYYY-MM-DD"})
		}
	}
	if req.Description != "" {
		expense.Description = req.Description
	}
	expense.Notes = req.Notes
	expense.CategoryID = req.CategoryID

	if err := repo.Update(expense); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update expense"})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(expense)
}

// HandleDeleteExpense deletes an expense and its stored receipt.
func HandleDeleteExpense(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetExpenseRepository()
	expense, err := repo.GetByID(c.Params("expenseID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Expense not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load expense"})
	}

	if expense.ReceiptKey != "" && receiptClient != nil {
		// Best effort; an orphaned object is better than a stuck delete.
		_ = receiptClient.Delete(c.Context(), expense.ReceiptKey)
	}

	if err := repo.Delete(expense.ID, userCtx.UserID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete expense"})
	}

	statistics.InvalidateUser(userCtx.UserID)
	return c.JSON(fiber.Map{"message": "Expense deleted"})
}

// HandleUploadReceipt attaches a receipt file to an expense.
func HandleUploadReceipt(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	if receiptClient == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Receipt storage is not configured"})
	}

	repo := repository.GetGlobalFactory().GetExpenseRepository()
	expense, err := repo.GetByID(c.Params("expenseID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Expense not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load expense"})
	}

	fileHeader, err := c.FormFile("receipt")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "receipt file is required"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".pdf", ".jpg", ".jpeg", ".png":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "receipt must be a PDF, JPEG or PNG"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to read upload"})
	}
	defer file.Close()

	objectKey := receiptConfig.ObjectKey(userCtx.UserID, expense.ID, ext, time.Now())
	contentType := fileHeader.Header.Get("Content-Type")
	if err := receiptClient.Upload(c.Context(), objectKey, file, fileHeader.Size, contentType); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store receipt"})
	}

	expense.ReceiptKey = objectKey
	if err := repo.Update(expense); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update expense"})
	}
	return c.JSON(fiber.Map{"message": "Receipt uploaded", "receipt_key": objectKey})
}

// HandleDownloadReceipt streams the stored receipt.
func HandleDownloadReceipt(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	if receiptClient == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Receipt storage is not configured"})
	}

	expense, err := repository.GetGlobalFactory().GetExpenseRepository().GetByID(c.Params("expenseID"), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Expense not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load expense"})
	}
	if expense.ReceiptKey == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No receipt attached"})
	}

	body, contentType, err := receiptClient.Download(c.Context(), expense.ReceiptKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load receipt"})
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.SendStream(body)
}

// HandleListExpenseCategories lists the caller's expense categories.
func HandleListExpenseCategories(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	categories, err := repository.GetGlobalFactory().GetExpenseRepository().GetCategories(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load categories"})
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// HandleCreateExpenseCategory creates an expense category.
func HandleCreateExpenseCategory(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "name is required"})
	}

	category := models.ExpenseCategory{
		UserID:      userCtx.UserID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := repository.GetGlobalFactory().GetExpenseRepository().CreateCategory(&category); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create category"})
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// HandleDeleteExpenseCategory deletes an expense category. Expenses
// keep existing with their category reference cleared.
func HandleDeleteExpenseCategory(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	id, err := strconv.ParseUint(c.Params("categoryID"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "category id must be numeric"})
	}

	err = repository.GetGlobalFactory().GetExpenseRepository().DeleteCategory(uint(id), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Category not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete category"})
	}
	return c.JSON(fiber.Map{"message": "Category deleted"})
}
