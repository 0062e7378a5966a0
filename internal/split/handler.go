package split

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/directory"
	"github.com/nairalink/nairalink/internal/ledger"
)

// Handler exposes split-payment group endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a split handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

const userIDHeader = "X-User-ID"

type createGroupRequest struct {
	Name string `json:"name"`
}

// CreateGroup opens a pool with the caller as creator.
func (h *Handler) CreateGroup(c *fiber.Ctx) error {
	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	g, err := h.service.CreateGroup(c.UserContext(), req.Name, c.Get(userIDHeader))
	if err != nil {
		return translateSplitError(err)
	}
	return c.Status(http.StatusCreated).JSON(groupResponse(g, true))
}

// Get returns one group for a member.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	g, err := h.service.Get(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return translateSplitError(err)
	}
	return c.JSON(groupResponse(g, g.CreatorID == userID))
}

// List returns the caller's groups.
func (h *Handler) List(c *fiber.Ctx) error {
	userID := c.Get(userIDHeader)
	groups, err := h.service.ByUser(c.UserContext(), userID)
	if err != nil {
		return translateSplitError(err)
	}
	out := make([]fiber.Map, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse(g, g.CreatorID == userID))
	}
	return c.JSON(fiber.Map{"groups": out})
}

type joinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

// Join adds the caller to the group behind the invite code.
func (h *Handler) Join(c *fiber.Ctx) error {
	var req joinGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	g, err := h.service.Join(c.UserContext(), req.InviteCode, c.Get(userIDHeader))
	if err != nil {
		return translateSplitError(err)
	}
	return c.JSON(groupResponse(g, false))
}

// Leave removes the caller from a group.
func (h *Handler) Leave(c *fiber.Ctx) error {
	if err := h.service.Leave(c.UserContext(), c.Params("id"), c.Get(userIDHeader)); err != nil {
		return translateSplitError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Delete removes an empty group. Creator only.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id"), c.Get(userIDHeader)); err != nil {
		return translateSplitError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type contributeRequest struct {
	Amount string `json:"amount"`
}

// Contribute pays into the pool from the caller's wallet.
func (h *Handler) Contribute(c *fiber.Ctx) error {
	var req contributeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	contribution, err := h.service.Contribute(c.UserContext(), c.Params("id"), c.Get(userIDHeader), amount)
	if err != nil {
		return translateSplitError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         contribution.ID,
		"amount":     contribution.Amount.String(),
		"reference":  contribution.Reference,
		"created_at": contribution.CreatedAt,
	})
}

type payRequest struct {
	RecipientEmail   string `json:"recipient_email"`
	Amount           string `json:"amount"`
	Description      string `json:"description"`
	RequiresApproval bool   `json:"requires_approval"`
	MinApprovals     int    `json:"min_approvals"`
}

// Pay spends out of the pool, immediately or pending approvals.
func (h *Handler) Pay(c *fiber.Ctx) error {
	var req payRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	p, err := h.service.Pay(c.UserContext(), PayInput{
		GroupID:          c.Params("id"),
		InitiatorID:      c.Get(userIDHeader),
		RecipientEmail:   req.RecipientEmail,
		Amount:           amount,
		Description:      req.Description,
		RequiresApproval: req.RequiresApproval,
		MinApprovals:     req.MinApprovals,
	})
	if err != nil {
		return translateSplitError(err)
	}
	return c.Status(http.StatusCreated).JSON(paymentResponse(p))
}

// Approve records the caller's vote on a pending payment.
func (h *Handler) Approve(c *fiber.Ctx) error {
	p, err := h.service.Approve(c.UserContext(), c.Params("paymentId"), c.Get(userIDHeader))
	if err != nil {
		return translateSplitError(err)
	}
	return c.JSON(paymentResponse(p))
}

// Payments lists a group's payments.
func (h *Handler) Payments(c *fiber.Ctx) error {
	payments, err := h.service.Payments(c.UserContext(), c.Params("id"), c.Get(userIDHeader))
	if err != nil {
		return translateSplitError(err)
	}
	out := make([]fiber.Map, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse(p))
	}
	return c.JSON(fiber.Map{"payments": out})
}

// Debts returns the settling transfers that equalize member contributions.
func (h *Handler) Debts(c *fiber.Ctx) error {
	debts, err := h.service.Debts(c.UserContext(), c.Params("id"), c.Get(userIDHeader))
	if err != nil {
		return translateSplitError(err)
	}
	out := make([]fiber.Map, 0, len(debts))
	for _, d := range debts {
		out = append(out, fiber.Map{
			"from_user_id": d.FromUserID,
			"to_user_id":   d.ToUserID,
			"amount":       d.Amount.String(),
		})
	}
	return c.JSON(fiber.Map{"debts": out})
}

func groupResponse(g Group, includeInvite bool) fiber.Map {
	resp := fiber.Map{
		"id":         g.ID,
		"name":       g.Name,
		"creator_id": g.CreatorID,
		"members":    g.Members,
		"balance":    g.Balance.String(),
		"currency":   g.Currency,
		"created_at": g.CreatedAt,
	}
	if includeInvite {
		resp["invite_code"] = g.InviteCode
	}
	return resp
}

func paymentResponse(p Payment) fiber.Map {
	return fiber.Map{
		"id":            p.ID,
		"group_id":      p.GroupID,
		"initiator_id":  p.InitiatorID,
		"recipient_id":  p.RecipientID,
		"amount":        p.Amount.String(),
		"description":   p.Description,
		"status":        string(p.Status),
		"approvals":     p.Approvals,
		"min_approvals": p.MinApprovals,
		"reference":     p.Reference,
		"created_at":    p.CreatedAt,
	}
}

func translateSplitError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPoolInsufficient),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, directory.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotMember),
		errors.Is(err, ErrNotCreator),
		errors.Is(err, ErrCreatorCannotLeave):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyMember),
		errors.Is(err, ErrAlreadyApproved),
		errors.Is(err, ErrPaymentNotPending),
		errors.Is(err, ErrPoolNotEmpty):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
