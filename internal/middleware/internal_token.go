package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const InternalTokenHeader = "X-Internal-Token"

// InternalTokenMiddleware guards the bot gateway endpoints. With no token
// configured every request is refused.
func InternalTokenMiddleware(token string, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "internal api disabled"})
		}
		got := c.Get(InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn("internal token rejected", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Next()
	}
}
