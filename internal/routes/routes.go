package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/handlers"
	"github.com/example/velora/internal/middleware"
	"github.com/example/velora/internal/services"
)

// Register wires all HTTP routes onto the Fiber app.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	phonepe := services.NewPhonePeService(services.PhonePeConfig{
		BaseURL:     cfg.PhonePeBaseURL,
		MerchantID:  cfg.PhonePeMerchantID,
		SaltKey:     cfg.PhonePeSaltKey,
		SaltIndex:   cfg.PhonePeSaltIndex,
		CallbackURL: cfg.PhonePeCallbackURL,
	})
	shiprocket := services.NewShiprocketService()
	coupons := services.NewCouponService(db)
	inventory := services.NewInventoryService(db)
	reconcile := services.NewReconcileService(db, shiprocket)

	authHandler := handlers.NewAuthHandler(db, cfg)
	profileHandler := handlers.NewProfileHandler(db)
	catalogHandler := handlers.NewCatalogHandler(db)
	productHandler := handlers.NewProductHandler(db)
	checkoutHandler := handlers.NewCheckoutHandler(db, phonepe, coupons)
	orderHandler := handlers.NewOrderHandler(db)
	couponHandler := handlers.NewCouponHandler(db, coupons)
	inventoryHandler := handlers.NewInventoryHandler(db, inventory)
	webhookHandler := handlers.NewWebhookHandler(phonepe, reconcile, cfg)
	shippingHandler := handlers.NewShippingHandler(db, shiprocket)
	adminHandler := handlers.NewAdminHandler(db)

	api := app.Group("/api")

	// Public endpoints.
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/categories/:idOrSlug", catalogHandler.GetCategory)
	api.Get("/products", productHandler.ListProducts)
	api.Get("/products/:idOrSlug", productHandler.GetProduct)

	api.Post("/coupons/validate", couponHandler.Validate)
	api.Post("/checkout", middleware.OptionalAuthMiddleware(cfg), checkoutHandler.Checkout)

	api.Post("/webhooks/:gateway",
		middleware.WebhookAuthMiddleware(cfg.PhonePeSaltKey),
		webhookHandler.HandleGateway)
	api.Post("/payments/redirect", webhookHandler.HandleRedirect)

	api.Get("/shipping/serviceability", shippingHandler.Serviceability)

	// Authenticated endpoints.
	protected := api.Group("", middleware.AuthMiddleware(cfg))
	protected.Get("/me", authHandler.Me)
	protected.Put("/me", profileHandler.UpdateProfile)
	protected.Get("/me/addresses", profileHandler.ListAddresses)
	protected.Post("/me/addresses", profileHandler.CreateAddress)
	protected.Put("/me/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/me/addresses/:id", profileHandler.DeleteAddress)

	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)

	// Admin endpoints.
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg), middleware.AdminMiddleware(db))
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/dashboard/recent-orders", adminHandler.RecentOrders)
	admin.Get("/users", adminHandler.ListAllUsers)

	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Put("/orders/:id/status", orderHandler.UpdateStatus)
	admin.Post("/orders/:id/shipment/retry", shippingHandler.RetryShipment)

	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)

	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)
	admin.Post("/products/:id/variants", productHandler.CreateVariant)
	admin.Put("/products/:id/variants/:variantId", productHandler.UpdateVariant)

	admin.Get("/coupons", couponHandler.ListCoupons)
	admin.Post("/coupons", couponHandler.CreateCoupon)
	admin.Put("/coupons/:id", couponHandler.UpdateCoupon)
	admin.Delete("/coupons/:id", couponHandler.DeleteCoupon)

	admin.Post("/inventory/adjust", inventoryHandler.AdjustStock)
	admin.Get("/inventory/levels", inventoryHandler.ListLevels)
	admin.Get("/inventory/ledger", inventoryHandler.ListLedger)
	admin.Get("/audit-logs", inventoryHandler.ListAuditLogs)
}
