package savings

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

// Handler exposes savings circle endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a savings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

const userIDHeader = "X-User-ID"

type createRequest struct {
	Name               string `json:"name"`
	ContributionAmount string `json:"contribution_amount"`
	Currency           string `json:"currency"`
	Frequency          string `json:"frequency"`
	TotalCycles        int    `json:"total_cycles"`
}

// Create opens a circle with the caller as creator.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.ContributionAmount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid contribution_amount")
	}
	circle, err := h.service.Create(c.UserContext(), CreateInput{
		Name:               req.Name,
		CreatorID:          c.Get(userIDHeader),
		ContributionAmount: amount,
		Currency:           req.Currency,
		Frequency:          Frequency(req.Frequency),
		TotalCycles:        req.TotalCycles,
	})
	if err != nil {
		return translateSavingsError(err)
	}
	return c.Status(http.StatusCreated).JSON(circleResponse(circle, true))
}

// Get returns one circle for a member.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	circle, err := h.service.Get(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return translateSavingsError(err)
	}
	return c.JSON(circleResponse(circle, circle.CreatorID == userID))
}

// List returns the caller's circles.
func (h *Handler) List(c *fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	circles, err := h.service.ByUser(c.UserContext(), userID)
	if err != nil {
		return translateSavingsError(err)
	}
	out := make([]fiber.Map, 0, len(circles))
	for _, circle := range circles {
		out = append(out, circleResponse(circle, circle.CreatorID == userID))
	}
	return c.JSON(fiber.Map{"circles": out})
}

type joinRequest struct {
	InviteCode string `json:"invite_code"`
}

// Join adds the caller to the circle behind the invite code.
func (h *Handler) Join(c *fiber.Ctx) error {
	var req joinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	circle, err := h.service.Join(c.UserContext(), req.InviteCode, c.Get(userIDHeader))
	if err != nil {
		return translateSavingsError(err)
	}
	return c.JSON(circleResponse(circle, false))
}

// Leave removes the caller from an unstarted circle.
func (h *Handler) Leave(c *fiber.Ctx) error {
	if err := h.service.Leave(c.UserContext(), c.Params("id"), c.Get(userIDHeader)); err != nil {
		return translateSavingsError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Delete removes an unstarted circle. Creator only.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id"), c.Get(userIDHeader)); err != nil {
		return translateSavingsError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Contribute records the caller's payment for the current cycle.
func (h *Handler) Contribute(c *fiber.Ctx) error {
	res, err := h.service.Contribute(c.UserContext(), c.Params("id"), c.Get(userIDHeader))
	if err != nil {
		return translateSavingsError(err)
	}
	resp := fiber.Map{
		"reference":        res.Reference,
		"payout_triggered": res.PayoutTriggered,
		"circle":           circleResponse(res.Circle, false),
	}
	if res.PayoutTriggered {
		resp["payout_user_id"] = res.PayoutUserID
		resp["payout_amount"] = res.PayoutAmount.String()
	}
	return c.JSON(resp)
}

// circleResponse renders a circle. The invite code is only shown to the
// creator.
func circleResponse(circle Circle, includeInvite bool) fiber.Map {
	members := make([]fiber.Map, 0, len(circle.Members))
	for _, m := range circle.Members {
		members = append(members, fiber.Map{
			"user_id":                    m.UserID,
			"position":                   m.Position,
			"has_paid_current_cycle":     m.HasPaidCurrentCycle,
			"has_received_current_cycle": m.HasReceivedCurrentCycle,
			"total_contributed":          m.TotalContributed.String(),
			"total_received":             m.TotalReceived.String(),
		})
	}
	resp := fiber.Map{
		"id":                      circle.ID,
		"name":                    circle.Name,
		"creator_id":              circle.CreatorID,
		"contribution_amount":     circle.ContributionAmount.String(),
		"currency":                circle.Currency,
		"frequency":               string(circle.Frequency),
		"total_cycles":            circle.TotalCycles,
		"current_cycle":           circle.CurrentCycle,
		"current_payout_position": circle.CurrentPayoutPosition,
		"members":                 members,
		"is_active":               circle.IsActive,
		"created_at":              circle.CreatedAt,
	}
	if includeInvite {
		resp["invite_code"] = circle.InviteCode
	}
	return resp
}

func translateSavingsError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidContribution),
		errors.Is(err, ErrInvalidFrequency):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrCircleNotFound),
		errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotMember),
		errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrCreatorCannotLeave):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrCircleStarted),
		errors.Is(err, ErrCircleInactive):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
