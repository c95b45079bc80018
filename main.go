package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/billmate/billmate/app/controllers"
	"github.com/billmate/billmate/app/repository"
	"github.com/billmate/billmate/internal/pkg/cache"
	"github.com/billmate/billmate/internal/pkg/database"
	"github.com/billmate/billmate/internal/pkg/env"
	"github.com/billmate/billmate/internal/pkg/payment"
	"github.com/billmate/billmate/internal/pkg/receipts"
	"github.com/billmate/billmate/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Payment core: one registry and service instance for the process,
	// injected into the controllers.
	paymentRepo := payment.NewRepository(database.GetDB())
	paymentRegistry := payment.NewRegistry(paymentRepo)
	controllers.SetPaymentService(payment.NewService(paymentRegistry, paymentRepo))

	// Receipt storage is optional; without it the receipt endpoints
	// report 503.
	if receiptCfg, err := receipts.LoadConfig(); err != nil {
		log.Printf("Receipt storage misconfigured: %v", err)
	} else if receiptCfg.IsEnabled() {
		client, err := receipts.NewClient(receiptCfg)
		if err != nil {
			log.Printf("Receipt storage unavailable: %v", err)
		} else {
			controllers.SetReceiptStorage(client, receiptCfg)
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
