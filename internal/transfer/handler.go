package transfer

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

// Handler exposes transfer and scheduled-transfer endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

const userIDHeader = "X-User-ID"

type initiateRequest struct {
	RecipientEmail string `json:"recipient_email"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
}

// Initiate starts the two-phase transfer handshake.
func (h *Handler) Initiate(c *fiber.Ctx) error {
	var req initiateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	res, err := h.service.Initiate(c.UserContext(), InitiateInput{
		SenderID:       c.Get(userIDHeader),
		RecipientEmail: req.RecipientEmail,
		Amount:         amount,
		Description:    req.Description,
	})
	if err != nil {
		return translateTransferError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"reference":         res.Reference,
		"verification_code": res.VerificationCode,
	})
}

type verifyRequest struct {
	Reference string `json:"reference"`
	Code      string `json:"code"`
}

// Verify completes (or re-reports) a pending transfer.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.Verify(c.UserContext(), req.Reference, req.Code)
	if err != nil {
		return translateTransferError(err)
	}
	return c.JSON(fiber.Map{
		"status":      string(res.Status),
		"new_balance": res.NewBalance.String(),
	})
}

// Status returns the stored transaction view for a reference.
func (h *Handler) Status(c *fiber.Ctx) error {
	tx, err := h.service.Status(c.UserContext(), c.Params("reference"))
	if err != nil {
		return translateTransferError(err)
	}
	return c.JSON(fiber.Map{
		"reference":   tx.Reference,
		"type":        string(tx.Type),
		"amount":      tx.Amount.String(),
		"currency":    tx.Currency,
		"status":      string(tx.Status),
		"description": tx.Description,
		"metadata":    tx.Metadata,
		"created_at":  tx.CreatedAt,
	})
}

type createScheduleRequest struct {
	RecipientEmail string `json:"recipient_email"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	Frequency      string `json:"frequency"`
	FirstExecution string `json:"first_execution"`
	EndDate        string `json:"end_date"`
}

// CreateSchedule records a recurring transfer instruction.
func (h *Handler) CreateSchedule(c *fiber.Ctx) error {
	var req createScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	input := CreateScheduleInput{
		UserID:         c.Get(userIDHeader),
		RecipientEmail: req.RecipientEmail,
		Amount:         amount,
		Description:    req.Description,
		Frequency:      Frequency(req.Frequency),
	}
	if req.FirstExecution != "" {
		t, err := time.Parse(time.RFC3339, req.FirstExecution)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid first_execution")
		}
		input.FirstExecution = t
	}
	if req.EndDate != "" {
		t, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid end_date")
		}
		input.EndDate = t
	}
	st, err := h.service.CreateSchedule(c.UserContext(), input)
	if err != nil {
		return translateTransferError(err)
	}
	return c.Status(http.StatusCreated).JSON(scheduleResponse(st))
}

// ListSchedules lists the caller's scheduled transfers.
func (h *Handler) ListSchedules(c *fiber.Ctx) error {
	items, err := h.service.SchedulesByUser(c.UserContext(), c.Get(userIDHeader))
	if err != nil {
		return translateTransferError(err)
	}
	out := make([]fiber.Map, 0, len(items))
	for _, st := range items {
		out = append(out, scheduleResponse(st))
	}
	return c.JSON(fiber.Map{"scheduled_transfers": out})
}

// PauseSchedule suspends an instruction.
func (h *Handler) PauseSchedule(c *fiber.Ctx) error {
	st, err := h.service.PauseSchedule(c.UserContext(), c.Params("id"), c.Get(userIDHeader))
	if err != nil {
		return translateTransferError(err)
	}
	return c.JSON(scheduleResponse(st))
}

// ResumeSchedule reactivates a paused instruction.
func (h *Handler) ResumeSchedule(c *fiber.Ctx) error {
	st, err := h.service.ResumeSchedule(c.UserContext(), c.Params("id"), c.Get(userIDHeader))
	if err != nil {
		return translateTransferError(err)
	}
	return c.JSON(scheduleResponse(st))
}

// DeleteSchedule removes an instruction.
func (h *Handler) DeleteSchedule(c *fiber.Ctx) error {
	if err := h.service.DeleteSchedule(c.UserContext(), c.Params("id"), c.Get(userIDHeader)); err != nil {
		return translateTransferError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func scheduleResponse(st ScheduledTransfer) fiber.Map {
	resp := fiber.Map{
		"id":                  st.ID,
		"recipient_email":     st.RecipientEmail,
		"amount":              st.Amount.String(),
		"description":         st.Description,
		"frequency":           string(st.Frequency),
		"next_execution_date": st.NextExecutionDate,
		"execution_count":     st.ExecutionCount,
		"status":              string(st.Status),
	}
	if !st.LastExecutionDate.IsZero() {
		resp["last_execution_date"] = st.LastExecutionDate
	}
	if !st.EndDate.IsZero() {
		resp["end_date"] = st.EndDate
	}
	return resp
}

func translateTransferError(err error) error {
	switch {
	case errors.Is(err, ErrRecipientRequired),
		errors.Is(err, ErrAmountBelowMinimum),
		errors.Is(err, ErrAmountAboveMaximum),
		errors.Is(err, ErrDailyLimitExceeded),
		errors.Is(err, ErrInvalidFrequency),
		errors.Is(err, ErrInvalidCode):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ErrScheduleNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOwner):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrScheduleNotActive),
		errors.Is(err, ledger.ErrDuplicateReference):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
