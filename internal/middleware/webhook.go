package middleware

import (
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// WebhookAuthMiddleware checks the optional Authorization header the gateway
// sends on callback deliveries. The header is not mandatory; when present it
// must carry the configured merchant key.
func WebhookAuthMiddleware(merchantKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" || merchantKey == "" {
			return c.Next()
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 {
			return writeWebhookAuthError(c)
		}

		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return writeWebhookAuthError(c)
		}

		if !strings.Contains(string(decoded), merchantKey) {
			return writeWebhookAuthError(c)
		}

		return c.Next()
	}
}

func writeWebhookAuthError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "invalid authorization",
	})
}
