package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nairalink/nairalink/internal/wallet"
)

// RegisterWalletRoutes wires wallet lifecycle and funding endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId", h.Get)
	r.Post("/wallets/fund", h.Fund)
	r.Post("/wallets/withdraw", h.Withdraw)
	r.Get("/users/:userId/transactions", h.Transactions)
}
