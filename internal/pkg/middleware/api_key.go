package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/database"
	"github.com/billmate/billmate/internal/pkg/entitlements"
	"github.com/billmate/billmate/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware resolves the caller from an API key header and
// stores a UserContext for downstream handlers. Keys are matched by
// SHA-256 hash against the user settings table.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		user, settings, err := resolveAPIKey(apiKey)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		touchAPIKey(user.ID, settings.ID)

		usercontext.Set(c, usercontext.UserContext{
			UserID:        user.ID,
			Name:          user.Name,
			Plan:          string(entitlements.EffectivePlan(settings.Plan)),
			IsAdmin:       user.Role == models.ROLE_ADMIN,
			Authenticated: true,
		})
		return c.Next()
	}
}

func resolveAPIKey(apiKey string) (*models.User, *models.UserSettings, error) {
	hash := models.HashAPIKey(apiKey)
	return repository.GetGlobalFactory().GetUserRepository().GetByAPIKeyHash(hash)
}

// touchAPIKey refreshes the last-used timestamp best-effort; auth never
// fails on it.
func touchAPIKey(userID, settingsID uint) {
	err := database.GetDB().Model(&models.UserSettings{}).
		Where("id = ?", settingsID).
		Update("api_key_last_used_at", time.Now()).Error
	if err != nil {
		log.Printf("failed to update api key usage timestamp for user %d: %v", userID, err)
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
