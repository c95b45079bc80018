package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/billmate/billmate/internal/pkg/payment"
	"github.com/billmate/billmate/internal/pkg/usercontext"
)

var paymentService *payment.Service

// SetPaymentService injects the payment service the controllers use.
// Called once during startup wiring.
func SetPaymentService(svc *payment.Service) {
	paymentService = svc
}

// requireUser resolves the authenticated user or writes a 401. The
// boolean reports whether the request may proceed.
func requireUser(c *fiber.Ctx) (usercontext.UserContext, bool) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.Authenticated {
		c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
		return userCtx, false
	}
	return userCtx, true
}

// parsePagination reads page/page_size query params with sane bounds.
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("page_size", "25"))
	if limit < 1 || limit > 100 {
		limit = 25
	}
	return (page - 1) * limit, limit
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
