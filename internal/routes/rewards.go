package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nairalink/nairalink/internal/rewards"
)

// RegisterRewardsRoutes wires rewards balance and redemption endpoints.
func RegisterRewardsRoutes(r fiber.Router, h *rewards.Handler) {
	group := r.Group("/rewards")
	group.Get("/balance", h.Balance)
	group.Get("/history", h.History)
	group.Post("/redeem", h.Redeem)
	group.Get("/redemptions", h.Redemptions)
}
