package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/database"
	"github.com/example/velora/internal/routes"
	"github.com/example/velora/internal/services"
)

func main() {
	cfg := config.Load()

	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName: "Velora Backend",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			} else {
				log.Printf("[Server] unhandled error: %v", err)
			}
			return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg)

	// Warm the aggregator token cache so the first shipment call is fast.
	if services.LoadShiprocketConfig().Enabled {
		if _, err := services.GetShiprocketToken(); err != nil {
			log.Printf("[Shiprocket] token warm-up failed: %v", err)
		} else {
			log.Println("[Shiprocket] token cache warmed")
		}
	}

	log.Printf("[Server] listening on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("[Server] listen failed: %v", err)
	}
}
