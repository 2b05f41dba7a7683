package http

import (
	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers the handler did not set.
// Reports are per-run results and are never cached by intermediaries.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		switch c.Path() {
		case "/v1/health", "/v1/ready":
			c.Set(fiber.HeaderCacheControl, "public, max-age=10")
		case "/metrics":
			c.Set(fiber.HeaderCacheControl, "no-cache")
		case "/v1/reports":
			c.Set(fiber.HeaderCacheControl, "no-store")
		}
		return err
	}
}
