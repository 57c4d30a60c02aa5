package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/velora/internal/services"
)

// ShippingHandler exposes serviceability checks and shipment retries.
type ShippingHandler struct {
	db         *gorm.DB
	shiprocket *services.ShiprocketService
}

// NewShippingHandler constructs ShippingHandler.
func NewShippingHandler(db *gorm.DB, shiprocket *services.ShiprocketService) *ShippingHandler {
	return &ShippingHandler{db: db, shiprocket: shiprocket}
}

// Serviceability lists courier options for a pickup/delivery pincode pair.
func (h *ShippingHandler) Serviceability(c *fiber.Ctx) error {
	if !h.shiprocket.Enabled() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "shipping integration is disabled")
	}

	pickup := c.Query("pickup_postcode")
	delivery := c.Query("delivery_postcode")
	if pickup == "" || delivery == "" {
		return fiber.NewError(fiber.StatusBadRequest, "pickup_postcode and delivery_postcode are required")
	}

	weightKg := 0.5
	if raw := c.Query("weight"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid weight")
		}
		weightKg = parsed
	}
	cod := c.Query("cod") == "1"

	couriers, err := h.shiprocket.CheckServiceability(pickup, delivery, weightKg, cod)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "serviceability check failed")
	}

	return c.JSON(fiber.Map{"success": true, "data": couriers})
}

// RetryShipment re-attempts shipment creation for a paid order whose earlier
// aggregator sync failed. Admin only.
func (h *ShippingHandler) RetryShipment(c *fiber.Ctx) error {
	if !h.shiprocket.Enabled() {
		return fiber.NewError(fiber.StatusServiceUnavailable, "shipping integration is disabled")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.shiprocket.CreateShipmentForOrder(context.Background(), h.db, orderID); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(fiber.Map{"success": true})
}
