package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/billmate/billmate/app/controllers"
	"github.com/billmate/billmate/internal/pkg/middleware"
)

// ApiRouter carries the authenticated API surface. Every group runs
// behind the API key middleware.
type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	auth := middleware.APIKeyAuthMiddleware()
	rate := limiter.New(limiter.Config{Max: 120})

	pay := app.Group("/payment", rate, auth)
	pay.Post("/create-session", controllers.HandleCreatePaymentSession)
	pay.Get("/status/:paymentID", controllers.HandleGetPaymentStatus)
	pay.Patch("/status/:paymentID", controllers.HandleUpdatePaymentStatus)
	pay.Post("/refund/:paymentID", controllers.HandleRefundPayment)
	pay.Post("/capture/:paymentID", controllers.HandleCapturePayment)
	pay.Get("/all", controllers.HandleListAllPayments)
	pay.Get("/invoice/:invoiceID/payments", controllers.HandleListInvoicePayments)
	pay.Get("/available-gateways", controllers.HandleAvailableGateways)
	pay.Get("/gateways", controllers.HandleListGatewayConfigs)
	pay.Post("/gateways", controllers.HandleCreateGatewayConfig)
	pay.Get("/gateways/:gatewayID", controllers.HandleGetGatewayConfig)
	pay.Patch("/gateways/:gatewayID", controllers.HandleUpdateGatewayConfig)
	pay.Delete("/gateways/:gatewayID", controllers.HandleDeleteGatewayConfig)

	clients := app.Group("/clients", rate, auth)
	clients.Get("/", controllers.HandleListClients)
	clients.Post("/", controllers.HandleCreateClient)
	clients.Get("/:clientID", controllers.HandleGetClient)
	clients.Patch("/:clientID", controllers.HandleUpdateClient)
	clients.Delete("/:clientID", controllers.HandleDeleteClient)

	invoices := app.Group("/invoices", rate, auth)
	invoices.Get("/", controllers.HandleListInvoices)
	invoices.Post("/", controllers.HandleCreateInvoice)
	invoices.Get("/:invoiceID", controllers.HandleGetInvoice)
	invoices.Patch("/:invoiceID", controllers.HandleUpdateInvoice)
	invoices.Delete("/:invoiceID", controllers.HandleDeleteInvoice)

	expenses := app.Group("/expenses", rate, auth)
	expenses.Get("/", controllers.HandleListExpenses)
	expenses.Post("/", controllers.HandleCreateExpense)
	expenses.Get("/categories", controllers.HandleListExpenseCategories)
	expenses.Post("/categories", controllers.HandleCreateExpenseCategory)
	expenses.Delete("/categories/:categoryID", controllers.HandleDeleteExpenseCategory)
	expenses.Patch("/:expenseID", controllers.HandleUpdateExpense)
	expenses.Delete("/:expenseID", controllers.HandleDeleteExpense)
	expenses.Post("/:expenseID/receipt", controllers.HandleUploadReceipt)
	expenses.Get("/:expenseID/receipt", controllers.HandleDownloadReceipt)

	analytics := app.Group("/analytics", rate, auth)
	analytics.Get("/summary", controllers.HandleAnalyticsSummary)
	analytics.Get("/revenue-expenses", controllers.HandleRevenueExpenses)

	user := app.Group("/user", rate, auth)
	user.Get("/account", controllers.HandleGetUserAccount)
	user.Patch("/settings", controllers.HandleUpdateUserSettings)
	user.Post("/api-key", controllers.HandleIssueAPIKey)
	user.Delete("/api-key", controllers.HandleRevokeAPIKey)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
