package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nairalink/nairalink/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/transfers", func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"reference": "ref-1"})
	})
	return app, &calls
}

func postTransfer(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/transfers", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode, string(body)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, body := postTransfer(t, app, "key-1")
	if status != fiber.StatusCreated {
		t.Fatalf("first request status %d", status)
	}

	replayStatus, replayBody := postTransfer(t, app, "key-1")
	if replayStatus != status || replayBody != body {
		t.Fatalf("replay mismatch: %d %q vs %d %q", replayStatus, replayBody, status, body)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("handler invoked %d times, want 1", got)
	}
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	app, calls := setupTestApp(t)

	for i := 0; i < 2; i++ {
		if status, _ := postTransfer(t, app, ""); status != fiber.StatusCreated {
			t.Fatalf("request %d status %d", i, status)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("handler invoked %d times, want 2", got)
	}
}

func TestIdempotencyDistinctKeysExecuteSeparately(t *testing.T) {
	app, calls := setupTestApp(t)

	postTransfer(t, app, "key-a")
	postTransfer(t, app, "key-b")
	if got := calls.Load(); got != 2 {
		t.Fatalf("handler invoked %d times, want 2", got)
	}
}

func TestIdempotencyErrorIsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/transfers", func(c *fiber.Ctx) error {
		if calls.Add(1) == 1 {
			return fiber.NewError(fiber.StatusServiceUnavailable, "try again")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"reference": "ref-2"})
	})

	req := httptest.NewRequest(fiber.MethodPost, "/transfers", strings.NewReader("{}"))
	req.Header.Set(idempotencyHeader, "key-retry")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected failure status, got %d", resp.StatusCode)
	}

	// The failed attempt released the key, so a retry reaches the handler.
	req = httptest.NewRequest(fiber.MethodPost, "/transfers", strings.NewReader("{}"))
	req.Header.Set(idempotencyHeader, "key-retry")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected retry to succeed, got %d", resp.StatusCode)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("handler invoked %d times, want 2", got)
	}
}
