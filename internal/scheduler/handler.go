package scheduler

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the manual scheduler trigger.
type Handler struct {
	scheduler *Scheduler
}

// NewHandler builds the scheduler HTTP handler.
func NewHandler(s *Scheduler) *Handler {
	return &Handler{scheduler: s}
}

// RunNow triggers an immediate tick. A run already in progress returns a
// conflict instead of blocking.
func (h *Handler) RunNow(c *fiber.Ctx) error {
	res, err := h.scheduler.RunNow(c.UserContext())
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	failures := make([]fiber.Map, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, fiber.Map{
			"schedule_id": f.ScheduleID,
			"reason":      f.Reason,
			"permanent":   f.Permanent,
		})
	}
	return c.JSON(fiber.Map{
		"success":            true,
		"executed_count":     res.ExecutedCount,
		"executed_transfers": res.ExecutedRefs,
		"failures":           failures,
	})
}
