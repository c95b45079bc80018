package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/billmate/billmate/internal/pkg/entitlements"
	"github.com/billmate/billmate/internal/pkg/statistics"
)

// HandleAnalyticsSummary returns the dashboard aggregates.
func HandleAnalyticsSummary(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	if !entitlements.AllowsAnalytics(entitlements.EffectivePlan(userCtx.Plan)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Your plan does not include analytics"})
	}

	summary, err := statistics.GetSummary(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to compute analytics"})
	}
	return c.JSON(summary)
}

// HandleRevenueExpenses returns the month-by-month revenue vs. expenses
// series for the trailing window.
func HandleRevenueExpenses(c *fiber.Ctx) error {
	userCtx, ok := requireUser(c)
	if !ok {
		return nil
	}
	if !entitlements.AllowsAnalytics(entitlements.EffectivePlan(userCtx.Plan)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Your plan does not include analytics"})
	}

	months, _ := strconv.Atoi(c.Query("months", "12"))
	entries, err := statistics.GetRevenueExpenses(userCtx.UserID, months)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to compute analytics"})
	}
	return c.JSON(fiber.Map{"months": entries})
}
