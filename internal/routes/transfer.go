package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nairalink/nairalink/internal/transfer"
)

// RegisterTransferRoutes wires the two-phase transfer handshake and
// scheduled-transfer management.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers", h.Initiate)
	r.Post("/transfers/verify", h.Verify)
	r.Get("/transfers/:reference", h.Status)

	r.Post("/transfers/scheduled", h.CreateSchedule)
	r.Get("/transfers/scheduled", h.ListSchedules)
	r.Post("/transfers/scheduled/:id/pause", h.PauseSchedule)
	r.Post("/transfers/scheduled/:id/resume", h.ResumeSchedule)
	r.Delete("/transfers/scheduled/:id", h.DeleteSchedule)
}
