package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/internal/pkg/database"
	"github.com/billmate/billmate/internal/pkg/env"
	"github.com/billmate/billmate/internal/pkg/security"
)

type gatewayConfigRequest struct {
	GatewayName string            `json:"gateway_name"`
	Credentials map[string]string `json:"credentials"`
	IsActive    *bool             `json:"is_active"`
	IsDefault   *bool             `json:"is_default"`
}

// gatewayConfigResponse never includes credential material.
func gatewayConfigResponse(cfg *models.GatewayConfig) fiber.Map {
	return fiber.Map{
		"id":           cfg.ID,
		"gateway_name": cfg.GatewayName,
		"is_active":    cfg.IsActive,
		"is_default":   cfg.IsDefault,
		"created_at":   cfg.CreatedAt,
		"updated_at":   cfg.UpdatedAt,
	}
}

// HandleAvailableGateways returns the gateway catalog for the
// configuration UI.
func HandleAvailableGateways(c *fiber.Ctx) error {
	if _, ok := requireUser(c); !ok {
		return nil
	}
	return c.JSON(fiber.Map{"gateways": paymentService.Registry().ListAvailable()})
}

// HandleListGatewayConfigs lists the caller's gateway configs.
func HandleListGatewayConfigs(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var configs []models.GatewayConfig
	if err := database.GetDB().Where("user_id = ?", userCtx.UserID).Order("created_at ASC").Find(&configs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load gateway configs"})
	}

	out := make([]fiber.Map, 0, len(configs))
	for i := range configs {
		out = append(out, gatewayConfigResponse(&configs[i]))
	}
	return c.JSON(fiber.Map{"gateways": out})
}

// HandleGetGatewayConfig returns one gateway config.
func HandleGetGatewayConfig(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cfg, err := ownedGatewayConfig(c.Params("gatewayID"), userCtx.UserID)
	if err != nil {
		return gatewayConfigError(c, err)
	}
	return c.JSON(gatewayConfigResponse(cfg))
}

// HandleCreateGatewayConfig stores a new gateway config with encrypted
// credentials.
func HandleCreateGatewayConfig(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req gatewayConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}
	if !models.IsKnownGateway(req.GatewayName) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Unsupported gateway: " + req.GatewayName})
	}
	if len(req.Credentials) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "credentials are required"})
	}

	enc, err := security.EncryptCredentials(req.Credentials, env.GetEnv("CREDENTIALS_SECRET", ""))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encrypt credentials"})
	}

	cfg := models.GatewayConfig{
		UserID:         userCtx.UserID,
		GatewayName:    req.GatewayName,
		IsActive:       true,
		CredentialsEnc: enc,
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		cfg.IsDefault = *req.IsDefault
	}

	db := database.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		var others int64
		if err := tx.Model(&models.GatewayConfig{}).Where("user_id = ?", userCtx.UserID).Count(&others).Error; err != nil {
			return err
		}
		cfg.EnsureDefaultWhenOnly(others)
		if cfg.IsDefault {
			if err := clearDefaultGateway(tx, userCtx.UserID); err != nil {
				return err
			}
		}
		return tx.Create(&cfg).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "A config for this gateway already exists"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save gateway config"})
	}

	return c.Status(fiber.StatusCreated).JSON(gatewayConfigResponse(&cfg))
}

// HandleUpdateGatewayConfig updates flags and, when provided, replaces
// the credential bundle.
func HandleUpdateGatewayConfig(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cfg, err := ownedGatewayConfig(c.Params("gatewayID"), userCtx.UserID)
	if err != nil {
		return gatewayConfigError(c, err)
	}

	var req gatewayConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid request body"})
	}

	if len(req.Credentials) > 0 {
		enc, err := security.EncryptCredentials(req.Credentials, env.GetEnv("CREDENTIALS_SECRET", ""))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to encrypt credentials"})
		}
		cfg.CredentialsEnc = enc
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	if req.IsDefault != nil {
		cfg.IsDefault = *req.IsDefault
	}

	db := database.GetDB()
	err = db.Transaction(func(tx *gorm.DB) error {
		var others int64
		if err := tx.Model(&models.GatewayConfig{}).Where("user_id = ? AND id <> ?", userCtx.UserID, cfg.ID).Count(&others).Error; err != nil {
			return err
		}
		cfg.EnsureDefaultWhenOnly(others)
		if cfg.IsDefault {
			if err := clearDefaultGateway(tx, userCtx.UserID); err != nil {
				return err
			}
		}
		return tx.Save(cfg).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save gateway config"})
	}

	return c.JSON(gatewayConfigResponse(cfg))
}

// HandleDeleteGatewayConfig removes a gateway config. Payment records
// keep their denormalized gateway name, so history survives.
func HandleDeleteGatewayConfig(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}

	cfg, err := ownedGatewayConfig(c.Params("gatewayID"), userCtx.UserID)
	if err != nil {
		return gatewayConfigError(c, err)
	}

	if err := database.GetDB().Delete(cfg).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to delete gateway config"})
	}
	return c.JSON(fiber.Map{"message": "Gateway config deleted"})
}

func ownedGatewayConfig(id string, userID uint) (*models.GatewayConfig, error) {
	var cfg models.GatewayConfig
	err := database.GetDB().Where("id = ? AND user_id = ?", id, userID).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func gatewayConfigError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Gateway config not found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load gateway config"})
}

func clearDefaultGateway(tx *gorm.DB, userID uint) error {
	return tx.Model(&models.GatewayConfig{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
}
