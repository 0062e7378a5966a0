package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyPrefix = "idem:"
	pendingMarker     = "pending"

	storeTimeout = 2 * time.Second
)

type replayedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key so
// retried money-movement requests cannot double-post. Requests without the
// header pass through; safe methods are never intercepted.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		key := c.Get(idempotencyHeader)
		if key == "" {
			return c.Next()
		}
		cacheKey := idempotencyPrefix + key

		ctx, cancel := context.WithTimeout(c.UserContext(), storeTimeout)
		defer cancel()

		// First writer reserves the key; everyone else either replays the
		// stored response or learns the original is still in flight.
		reserved, err := cache.SetNX(ctx, cacheKey, pendingMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reserve failed", "key", key, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store unavailable")
		}
		if !reserved {
			return replay(ctx, c, cache, cacheKey, logger)
		}

		if err := c.Next(); err != nil {
			// Errors are not cached; the caller may retry with the same key.
			release(cache, cacheKey)
			return err
		}

		stored, err := json.Marshal(replayedResponse{
			Status:      c.Response().StatusCode(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        c.Response().Body(),
		})
		if err != nil {
			release(cache, cacheKey)
			logger.Error("idempotency encode failed", "key", key, "error", err)
			return nil
		}
		persistCtx, persistCancel := context.WithTimeout(context.Background(), storeTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, stored, ttl).Err(); err != nil {
			logger.Error("idempotency persist failed", "key", key, "error", err)
			release(cache, cacheKey)
		}
		return nil
	}
}

func replay(ctx context.Context, c *fiber.Ctx, cache *redis.Client, cacheKey string, logger *slog.Logger) error {
	cached, err := cache.Get(ctx, cacheKey).Result()
	if err != nil {
		if err == redis.Nil {
			// Reservation expired between SetNX and Get; treat as duplicate.
			return fiber.NewError(fiber.StatusConflict, "duplicate request")
		}
		logger.Error("idempotency lookup failed", "key", cacheKey, "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "idempotency store unavailable")
	}
	if cached == pendingMarker {
		return fiber.NewError(fiber.StatusConflict, "request with this key is still processing")
	}

	var stored replayedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("idempotency decode failed", "key", cacheKey, "error", err)
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	return c.Status(stored.Status).Send(stored.Body)
}

func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}
