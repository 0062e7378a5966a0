package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/events"
	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/notification"
)

const defaultCurrency = "NGN"

// ErrInvalidAmount rejects zero or negative amounts before anything is persisted.
var ErrInvalidAmount = errors.New("amount must be positive")

// Service exposes wallet lifecycle and funding operations backed by the ledger.
type Service struct {
	store    ledger.Store
	emitter  events.Emitter
	notifier notification.Notifier
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, emitter events.Emitter, notifier notification.Notifier) *Service {
	return &Service{store: store, emitter: emitter, notifier: notifier}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	UserID   string
	Currency string
}

// Create provisions a wallet for the user.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if _, err := uuid.Parse(input.UserID); err != nil {
		return ledger.Wallet{}, fmt.Errorf("invalid user id: %w", err)
	}
	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	w := ledger.Wallet{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Balance:   decimal.Zero,
		Currency:  currency,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateWallet(ctx, w); err != nil {
		return ledger.Wallet{}, err
	}
	return w, nil
}

// Get retrieves a wallet by identifier.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.store.Wallet(ctx, id)
}

// ByUser retrieves the wallet owned by the given user.
func (s *Service) ByUser(ctx context.Context, userID string) (ledger.Wallet, error) {
	return s.store.WalletByUser(ctx, userID)
}

// Transactions lists the user's most recent ledger activity.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID, limit)
}

// MoveInput captures a funding or withdrawal request. The provider leg
// (card, bank, agent) is settled upstream; this records the wallet side.
type MoveInput struct {
	UserID      string
	Amount      decimal.Decimal
	Reference   string
	Description string
}

// MoveResult describes the ledger outcome of a funding or withdrawal.
type MoveResult struct {
	Reference  string
	NewBalance decimal.Decimal
	Status     ledger.TxStatus
}

// Fund credits the user's wallet and logs a completed funding transaction.
func (s *Service) Fund(ctx context.Context, input MoveInput) (MoveResult, error) {
	return s.move(ctx, input, ledger.TxFunding)
}

// Withdraw debits the user's wallet and logs a completed withdrawal
// transaction. The debit is guarded against a negative balance.
func (s *Service) Withdraw(ctx context.Context, input MoveInput) (MoveResult, error) {
	return s.move(ctx, input, ledger.TxWithdrawal)
}

func (s *Service) move(ctx context.Context, input MoveInput, kind ledger.TxType) (MoveResult, error) {
	if !input.Amount.IsPositive() {
		return MoveResult{}, ErrInvalidAmount
	}
	w, err := s.store.WalletByUser(ctx, input.UserID)
	if err != nil {
		return MoveResult{}, err
	}

	reference := input.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	delta := input.Amount
	if kind == ledger.TxWithdrawal {
		delta = delta.Neg()
	}
	tx := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      w.UserID,
		WalletID:    w.ID,
		Type:        kind,
		Amount:      input.Amount,
		Currency:    w.Currency,
		Reference:   reference,
		Status:      ledger.StatusCompleted,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}
	err = s.store.Post(ctx, ledger.Posting{
		Entries: []ledger.Entry{{WalletID: w.ID, Amount: delta}},
		Records: []ledger.Transaction{tx},
	})
	if err != nil {
		return MoveResult{}, err
	}

	if s.emitter != nil {
		s.emitter.TransactionCompleted(ctx, tx)
	}
	if s.notifier != nil {
		verb := "funded with"
		if kind == ledger.TxWithdrawal {
			verb = "debited"
		}
		_ = s.notifier.Send(ctx, notification.Event{
			UserID:    w.UserID,
			Type:      notification.KindFunding,
			Title:     "Wallet update",
			Message:   fmt.Sprintf("Your wallet was %s %s %s", verb, input.Amount, w.Currency),
			Reference: reference,
		})
	}

	updated, err := s.store.Wallet(ctx, w.ID)
	if err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Reference: reference, NewBalance: updated.Balance, Status: ledger.StatusCompleted}, nil
}
