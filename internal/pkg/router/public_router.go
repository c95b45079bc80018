package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/billmate/billmate/app/controllers"
)

// PublicRouter carries the unauthenticated surface: provider webhooks
// and the payer-facing invoice endpoints.
type PublicRouter struct {
}

func (h PublicRouter) InstallRouter(app *fiber.App) {
	// Providers retry on any non-2xx, so the webhook route must stay
	// outside rate limiting and auth.
	app.Post("/payment/webhook/:gateway", controllers.HandlePaymentWebhook)

	public := app.Group("/payment", limiter.New(limiter.Config{Max: 60}))
	public.Get("/public/invoice/:invoiceID", controllers.HandlePublicInvoice)
	public.Get("/invoice/:invoiceID/gateway", controllers.HandleInvoiceGateway)
	public.Get("/invoice/:invoiceID/gateway-check", controllers.HandleInvoiceGatewayCheck)
}

func NewPublicRouter() *PublicRouter {
	return &PublicRouter{}
}
