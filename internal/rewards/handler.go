package rewards

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// Handler exposes rewards endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a rewards handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

const userIDHeader = "X-User-ID"

// Balance returns the caller's points account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	b, err := h.service.Balance(c.UserContext(), c.Get(userIDHeader))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"user_id":           b.UserID,
		"available_balance": b.AvailableBalance.String(),
		"lifetime_earned":   b.LifetimeEarned.String(),
		"lifetime_redeemed": b.LifetimeRedeemed.String(),
		"tier":              string(b.Tier),
	})
}

// History returns the caller's recent accruals.
func (h *Handler) History(c *fiber.Ctx) error {
	items, err := h.service.History(c.UserContext(), c.Get(userIDHeader), c.QueryInt("limit", 50))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(items))
	for _, r := range items {
		out = append(out, fiber.Map{
			"id":                    r.ID,
			"transaction_reference": r.TransactionReference,
			"type":                  string(r.Type),
			"amount":                r.Amount.String(),
			"created_at":            r.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"rewards": out})
}

type redeemRequest struct {
	Amount string `json:"amount"`
}

// Redeem requests a points cash-out.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	var req redeemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	redemption, err := h.service.Redeem(c.UserContext(), c.Get(userIDHeader), amount)
	if err != nil {
		if errors.Is(err, ErrInsufficientRewards) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         redemption.ID,
		"amount":     redemption.Amount.String(),
		"status":     string(redemption.Status),
		"created_at": redemption.CreatedAt,
	})
}

// Redemptions lists the caller's redemption requests.
func (h *Handler) Redemptions(c *fiber.Ctx) error {
	items, err := h.service.Redemptions(c.UserContext(), c.Get(userIDHeader))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(items))
	for _, r := range items {
		out = append(out, fiber.Map{
			"id":         r.ID,
			"amount":     r.Amount.String(),
			"status":     string(r.Status),
			"created_at": r.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"redemptions": out})
}
