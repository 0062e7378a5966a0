package wallet

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	UserID   string `json:"user_id"`
	Currency string `json:"currency"`
}

type moveRequest struct {
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

type walletResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
	IsActive bool   `json:"is_active"`
}

func toWalletResponse(w ledger.Wallet) walletResponse {
	return walletResponse{
		ID:       w.ID,
		UserID:   w.UserID,
		Balance:  w.Balance.String(),
		Currency: w.Currency,
		IsActive: w.IsActive,
	}
}

// Create provisions a wallet.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{UserID: req.UserID, Currency: req.Currency})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Get returns a wallet with its current balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, "wallet not found")
	}
	return c.JSON(toWalletResponse(w))
}

// Fund credits the caller's wallet.
func (h *Handler) Fund(c *fiber.Ctx) error {
	return h.move(c, h.service.Fund)
}

// Withdraw debits the caller's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.service.Withdraw)
}

func (h *Handler) move(c *fiber.Ctx, op func(ctx context.Context, input MoveInput) (MoveResult, error)) error {
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	res, err := op(c.UserContext(), MoveInput{
		UserID:      req.UserID,
		Amount:      amount,
		Reference:   req.Reference,
		Description: req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		case errors.Is(err, ledger.ErrDuplicateReference):
			return fiber.NewError(http.StatusConflict, "duplicate reference")
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"reference":   res.Reference,
		"new_balance": res.NewBalance.String(),
		"status":      string(res.Status),
	})
}

// Transactions lists recent ledger activity for a user.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID := c.Params("userId")
	txs, err := h.service.Transactions(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		out = append(out, fiber.Map{
			"reference":   tx.Reference,
			"type":        string(tx.Type),
			"amount":      tx.Amount.String(),
			"currency":    tx.Currency,
			"status":      string(tx.Status),
			"description": tx.Description,
			"created_at":  tx.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"transactions": out})
}
