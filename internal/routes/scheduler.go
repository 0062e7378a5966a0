package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nairalink/nairalink/internal/scheduler"
)

// RegisterSchedulerRoutes wires the operational scheduler trigger.
func RegisterSchedulerRoutes(r fiber.Router, h *scheduler.Handler) {
	r.Post("/scheduler/run", h.RunNow)
}
