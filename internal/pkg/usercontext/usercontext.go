package usercontext

import "github.com/gofiber/fiber/v2"

// LocalsKey is where the authenticated caller is stored on the request.
const LocalsKey = "USER_CONTEXT"

// UserContext describes the API caller resolved from their key: the
// account, the plan driving entitlement checks, and the admin flag.
type UserContext struct {
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	Plan          string `json:"plan"`
	IsAdmin       bool   `json:"is_admin"`
	Authenticated bool   `json:"authenticated"`
}

// Set stores the caller on the request for downstream handlers.
func Set(c *fiber.Ctx, ctx UserContext) {
	c.Locals(LocalsKey, ctx)
}

// GetUserContext retrieves the caller from the request. Returns an
// anonymous context when no auth middleware ran.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(LocalsKey); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{}
}

// IsAuthenticated reports whether the request carries a resolved caller.
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetUserContext(c).Authenticated
}

// GetUserID returns the caller's account id, or 0 when anonymous.
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetPlan returns the caller's plan name, or empty when anonymous.
func GetPlan(c *fiber.Ctx) string {
	return GetUserContext(c).Plan
}
