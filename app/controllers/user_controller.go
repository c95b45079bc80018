package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/entitlements"
)

// HandleGetUserAccount returns account information for the
// authenticated user.
func HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	account, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	settings, err := repo.GetSettings(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	plan := entitlements.EffectivePlan(settings.Plan)
	invoiceCount, err := repository.GetGlobalFactory().GetInvoiceRepository().CountByUserID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load statistics"})
	}

	var invoiceLimit interface{}
	if limit := entitlements.InvoiceLimit(plan); limit >= 0 {
		invoiceLimit = limit
	}

	return c.JSON(fiber.Map{
		"id":                   account.ID,
		"username":             account.Name,
		"email":                account.Email,
		"status":               account.Status,
		"company_name":         account.CompanyName,
		"plan":                 string(plan),
		"currency":             settings.Currency,
		"is_admin":             account.Role == models.ROLE_ADMIN,
		"created_at":           account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":        formatTimePtr(account.LastLoginAt),
		"api_key_prefix":       settings.APIKeyPrefix,
		"api_key_last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		"limits": fiber.Map{
			"invoice_limit":      invoiceLimit,
			"invoice_count":      invoiceCount,
			"payment_collection": entitlements.AllowsPaymentCollection(plan),
			"analytics":          entitlements.AllowsAnalytics(plan),
		},
	})
}

// HandleUpdateUserSettings updates billing preferences: currency and
// the platform gateway opt-in.
func HandleUpdateUserSettings(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req struct {
		Currency             *string `json:"currency"`
		AllowPlatformGateway *bool   `json:"allow_platform_gateway"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	settings, err := repo.GetSettings(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	if req.Currency != nil {
		if len(*req.Currency) != 3 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "currency must be a 3-letter code"})
		}
		settings.Currency = *req.Currency
	}
	if req.AllowPlatformGateway != nil {
		settings.AllowPlatformGateway = *req.AllowPlatformGateway
	}

	if err := repo.SaveSettings(settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save settings"})
	}
	return c.JSON(fiber.Map{
		"currency":               settings.Currency,
		"allow_platform_gateway": settings.AllowPlatformGateway,
	})
}

// HandleIssueAPIKey generates a fresh API key. The raw secret is shown
// exactly once; only its hash is stored.
func HandleIssueAPIKey(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	settings, err := repo.GetSettings(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}

	secret, err := settings.IssueAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to generate API key"})
	}
	if err := repo.SaveSettings(settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save API key"})
	}

	return c.JSON(fiber.Map{
		"api_key":    secret,
		"prefix":     settings.APIKeyPrefix,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

// HandleRevokeAPIKey revokes the active API key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	settings, err := repo.GetSettings(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user settings"})
	}
	if !settings.HasActiveAPIKey() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "No active API key"})
	}

	settings.RevokeAPIKey()
	if err := repo.SaveSettings(settings); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to revoke API key"})
	}
	return c.JSON(fiber.Map{"message": "API key revoked"})
}
