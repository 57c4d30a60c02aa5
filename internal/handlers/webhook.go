package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/services"
)

// WebhookHandler receives asynchronous payment-gateway notifications.
type WebhookHandler struct {
	phonepe   *services.PhonePeService
	reconcile *services.ReconcileService
	cfg       *config.Config
}

func NewWebhookHandler(phonepe *services.PhonePeService, reconcile *services.ReconcileService, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{phonepe: phonepe, reconcile: reconcile, cfg: cfg}
}

// HandleGateway processes a callback on /api/webhooks/:gateway.
func (h *WebhookHandler) HandleGateway(c *fiber.Ctx) error {
	if c.Params("gateway") != "phonepe" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown gateway"})
	}

	cb, err := h.phonepe.ParseCallback(c.Body(), c.Get("x-verify"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid callback body")
	}

	ctx := context.Background()

	result, err := h.reconcile.ApplyCallback(ctx, cb)
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "transaction not found"})
		}
		return err
	}

	log.Printf("[Webhook] %s for %s: payment=%s order=%s transitioned=%v",
		cb.Code, cb.MerchantTransactionID, result.Payment.Status, result.OrderID, result.Transitioned)

	return c.JSON(fiber.Map{"success": true})
}

// HandleRedirect receives the gateway's form POST after hosted checkout and
// forwards the shopper to the configured result page.
func (h *WebhookHandler) HandleRedirect(c *fiber.Ctx) error {
	code := c.FormValue("code")

	target := h.cfg.PaymentFailureURL
	if code == services.GatewayCodeSuccess {
		target = h.cfg.PaymentSuccessURL
	}

	return c.Redirect(target, fiber.StatusSeeOther)
}
