package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit logs one structured line per request. Money-movement endpoints are
// audited at the route level; this captures the transport view.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if user := c.Get("X-User-ID"); user != "" {
			attrs = append(attrs, slog.String("user_id", user))
		}

		if err != nil {
			logger.Error("request", append(attrs, slog.Any("error", err))...)
			return err
		}
		logger.Info("request", attrs...)
		return nil
	}
}
