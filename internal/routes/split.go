package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nairalink/nairalink/internal/split"
)

// RegisterSplitRoutes wires split-payment group endpoints.
func RegisterSplitRoutes(r fiber.Router, h *split.Handler) {
	group := r.Group("/split/groups")
	group.Post("", h.CreateGroup)
	group.Get("", h.List)
	group.Post("/join", h.Join)
	group.Get("/:id", h.Get)
	group.Post("/:id/contribute", h.Contribute)
	group.Post("/:id/pay", h.Pay)
	group.Get("/:id/payments", h.Payments)
	group.Get("/:id/debts", h.Debts)
	group.Post("/:id/leave", h.Leave)
	group.Delete("/:id", h.Delete)

	r.Post("/split/payments/:paymentId/approve", h.Approve)
}
