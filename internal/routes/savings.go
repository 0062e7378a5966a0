package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nairalink/nairalink/internal/savings"
)

// RegisterSavingsRoutes wires savings circle endpoints.
func RegisterSavingsRoutes(r fiber.Router, h *savings.Handler) {
	group := r.Group("/savings/circles")
	group.Post("", h.Create)
	group.Get("", h.List)
	group.Post("/join", h.Join)
	group.Get("/:id", h.Get)
	group.Post("/:id/contribute", h.Contribute)
	group.Post("/:id/leave", h.Leave)
	group.Delete("/:id", h.Delete)
}
