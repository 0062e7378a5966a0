package transfer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/nairalink/nairalink/internal/directory"
	"github.com/nairalink/nairalink/internal/events"
	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/notification"
)

var (
	// ErrRecipientRequired rejects transfers without a recipient email.
	ErrRecipientRequired = errors.New("recipient email is required")

	// ErrAmountBelowMinimum rejects transfers under the per-transaction floor.
	ErrAmountBelowMinimum = errors.New("amount below minimum transfer limit")

	// ErrAmountAboveMaximum rejects transfers over the per-transaction ceiling.
	ErrAmountAboveMaximum = errors.New("amount above maximum transfer limit")

	// ErrDailyLimitExceeded rejects transfers that would push the sender past
	// the rolling daily aggregate cap.
	ErrDailyLimitExceeded = errors.New("daily transfer limit exceeded")

	// ErrInvalidCode means the verification code does not match. The transfer
	// stays pending so the sender can retry with the correct code.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrNotOwner indicates the caller does not own the scheduled transfer.
	ErrNotOwner = errors.New("not owner of scheduled transfer")

	// ErrScheduleNotActive indicates the instruction was paused, completed or
	// deleted between discovery and execution.
	ErrScheduleNotActive = errors.New("scheduled transfer not active")
)

// Metadata keys written on transfer transactions.
const (
	metaCodeHash       = "verification_code_hash"
	metaRecipientEmail = "recipient_email"
	metaCounterpart    = "counterpart_reference"
	metaScheduleID     = "schedule_id"
)

// Limits bound individual transfers and the per-sender daily aggregate.
type Limits struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	DailyCap  decimal.Decimal
}

// DefaultLimits returns the production transfer bounds.
func DefaultLimits() Limits {
	return Limits{
		MinAmount: decimal.NewFromInt(100),
		MaxAmount: decimal.NewFromInt(1_000_000),
		DailyCap:  decimal.NewFromInt(5_000_000),
	}
}

// Service is the transfer engine: the only component that moves funds between
// wallets point to point, ad hoc or on a schedule.
type Service struct {
	store     ledger.Store
	directory directory.Directory
	schedules ScheduleRepository
	emitter   events.Emitter
	notifier  notification.Notifier
	limits    Limits
}

// NewService builds a transfer engine.
func NewService(store ledger.Store, dir directory.Directory, schedules ScheduleRepository,
	emitter events.Emitter, notifier notification.Notifier, limits Limits) *Service {
	return &Service{
		store:     store,
		directory: dir,
		schedules: schedules,
		emitter:   emitter,
		notifier:  notifier,
		limits:    limits,
	}
}

// InitiateInput captures a transfer request awaiting verification.
type InitiateInput struct {
	SenderID       string
	RecipientEmail string
	Amount         decimal.Decimal
	Description    string
}

// InitiateResult carries the pending reference and the one-time code the
// sender must echo back. The code is never stored in the clear.
type InitiateResult struct {
	Reference        string
	VerificationCode string
}

// Initiate validates the request and records a pending transfer. No funds
// move until Verify.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (InitiateResult, error) {
	if input.RecipientEmail == "" {
		return InitiateResult{}, ErrRecipientRequired
	}
	if input.Amount.LessThan(s.limits.MinAmount) {
		return InitiateResult{}, ErrAmountBelowMinimum
	}
	if s.limits.MaxAmount.IsPositive() && input.Amount.GreaterThan(s.limits.MaxAmount) {
		return InitiateResult{}, ErrAmountAboveMaximum
	}

	w, err := s.store.WalletByUser(ctx, input.SenderID)
	if err != nil {
		return InitiateResult{}, err
	}
	if w.Balance.LessThan(input.Amount) {
		return InitiateResult{}, ledger.ErrInsufficientFunds
	}

	if s.limits.DailyCap.IsPositive() {
		sentToday, err := s.store.CompletedTransferTotalSince(ctx, input.SenderID, localMidnight(time.Now()))
		if err != nil {
			return InitiateResult{}, err
		}
		if sentToday.Add(input.Amount).GreaterThan(s.limits.DailyCap) {
			return InitiateResult{}, ErrDailyLimitExceeded
		}
	}

	code, err := generateCode()
	if err != nil {
		return InitiateResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return InitiateResult{}, err
	}

	reference := uuid.NewString()
	tx := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      input.SenderID,
		WalletID:    w.ID,
		Type:        ledger.TxTransfer,
		Amount:      input.Amount,
		Currency:    w.Currency,
		Reference:   reference,
		Status:      ledger.StatusPending,
		Description: input.Description,
		Metadata: map[string]string{
			ledger.MetaDirection: ledger.DirectionDebit,
			metaCodeHash:         string(hash),
			metaRecipientEmail:   input.RecipientEmail,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Post(ctx, ledger.Posting{Records: []ledger.Transaction{tx}}); err != nil {
		return InitiateResult{}, err
	}

	return InitiateResult{Reference: reference, VerificationCode: code}, nil
}

// VerifyResult reports the terminal outcome of a verification call.
type VerifyResult struct {
	Status     ledger.TxStatus
	NewBalance decimal.Decimal
}

// Verify checks the one-time code and executes the pending transfer. Calling
// it again on a terminal transaction returns the stored status without
// moving funds.
func (s *Service) Verify(ctx context.Context, reference, code string) (VerifyResult, error) {
	tx, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return VerifyResult{}, err
	}
	hash, ok := tx.Metadata[metaCodeHash]
	if tx.Type != ledger.TxTransfer || !ok {
		return VerifyResult{}, ledger.ErrTransactionNotFound
	}

	if tx.Status.Terminal() {
		w, err := s.store.Wallet(ctx, tx.WalletID)
		if err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Status: tx.Status, NewBalance: w.Balance}, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)); err != nil {
		return VerifyResult{}, ErrInvalidCode
	}

	recipientWallet, recipientFound := s.resolveRecipient(ctx, tx.Metadata[metaRecipientEmail], "")

	posting := ledger.Posting{
		Entries: []ledger.Entry{{WalletID: tx.WalletID, Amount: tx.Amount.Neg()}},
		Updates: []ledger.StatusUpdate{{Reference: reference, Status: ledger.StatusCompleted}},
	}
	if recipientFound {
		posting.Entries = append(posting.Entries, ledger.Entry{WalletID: recipientWallet.ID, Amount: tx.Amount})
		posting.Records = append(posting.Records, mirroredCredit(tx, recipientWallet))
	}

	if err := s.store.Post(ctx, posting); err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			// A concurrent verify won the race; report its terminal outcome.
			return s.terminalResult(ctx, reference)
		}
		// Balance or wallet failures after code acceptance are permanent.
		if failErr := s.store.Post(ctx, ledger.Posting{
			Updates: []ledger.StatusUpdate{{Reference: reference, Status: ledger.StatusFailed}},
		}); failErr != nil {
			return VerifyResult{}, fmt.Errorf("mark transfer failed: %v: %w", failErr, err)
		}
		return VerifyResult{Status: ledger.StatusFailed}, err
	}

	tx.Status = ledger.StatusCompleted
	if s.emitter != nil {
		s.emitter.TransactionCompleted(ctx, tx)
	}
	s.notifyTransfer(ctx, tx, recipientWallet, recipientFound)

	w, err := s.store.Wallet(ctx, tx.WalletID)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Status: ledger.StatusCompleted, NewBalance: w.Balance}, nil
}

func (s *Service) terminalResult(ctx context.Context, reference string) (VerifyResult, error) {
	tx, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return VerifyResult{}, err
	}
	w, err := s.store.Wallet(ctx, tx.WalletID)
	if err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Status: tx.Status, NewBalance: w.Balance}, nil
}

// Status returns the transaction view for a reference with internal
// verification material stripped.
func (s *Service) Status(ctx context.Context, reference string) (ledger.Transaction, error) {
	tx, err := s.store.TransactionByReference(ctx, reference)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Metadata != nil {
		delete(tx.Metadata, metaCodeHash)
	}
	return tx, nil
}

// resolveRecipient maps a recipient email or user id to a wallet. A missing
// user or wallet is not an error: the transfer completes sender-side only.
func (s *Service) resolveRecipient(ctx context.Context, email, userID string) (ledger.Wallet, bool) {
	if userID == "" && email != "" {
		user, err := s.directory.FindByEmail(ctx, email)
		if err != nil {
			return ledger.Wallet{}, false
		}
		userID = user.ID
	}
	if userID == "" {
		return ledger.Wallet{}, false
	}
	w, err := s.store.WalletByUser(ctx, userID)
	if err != nil || !w.IsActive {
		return ledger.Wallet{}, false
	}
	return w, true
}

func mirroredCredit(debit ledger.Transaction, recipient ledger.Wallet) ledger.Transaction {
	return ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      recipient.UserID,
		WalletID:    recipient.ID,
		Type:        ledger.TxTransfer,
		Amount:      debit.Amount,
		Currency:    debit.Currency,
		Reference:   uuid.NewString(),
		Status:      ledger.StatusCompleted,
		Description: debit.Description,
		Metadata: map[string]string{
			ledger.MetaDirection: ledger.DirectionCredit,
			metaCounterpart:      debit.Reference,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Service) notifyTransfer(ctx context.Context, tx ledger.Transaction, recipient ledger.Wallet, recipientFound bool) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Event{
		UserID:    tx.UserID,
		Type:      notification.KindTransfer,
		Title:     "Transfer sent",
		Message:   fmt.Sprintf("You sent %s %s", tx.Amount, tx.Currency),
		Reference: tx.Reference,
	})
	if recipientFound {
		_ = s.notifier.Send(ctx, notification.Event{
			UserID:    recipient.UserID,
			Type:      notification.KindTransfer,
			Title:     "Transfer received",
			Message:   fmt.Sprintf("You received %s %s", tx.Amount, tx.Currency),
			Reference: tx.Reference,
		})
	}
}

func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
