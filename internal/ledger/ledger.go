package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit would take a wallet balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateReference indicates the transaction reference already exists
	// in the log and the operation should be treated as idempotent.
	ErrDuplicateReference = errors.New("duplicate transaction reference")

	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletInactive indicates the wallet exists but is closed to postings.
	ErrWalletInactive = errors.New("wallet inactive")

	// ErrTransactionNotFound indicates no transaction matches the reference,
	// or a status update targeted a transaction that is no longer pending.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TxType classifies a balance-affecting event.
type TxType string

const (
	TxFunding             TxType = "funding"
	TxWithdrawal          TxType = "withdrawal"
	TxTransfer            TxType = "transfer"
	TxBillPayment         TxType = "bill_payment"
	TxSavingsContribution TxType = "savings_contribution"
	TxSavingsPayout       TxType = "savings_payout"
	TxSplitContribution   TxType = "split_contribution"
	TxSplitPayment        TxType = "split_payment"
	TxOther               TxType = "other"
)

// TxStatus is the lifecycle state of a transaction. Pending transactions may
// transition to completed or failed; both are terminal.
type TxStatus string

const (
	StatusPending   TxStatus = "pending"
	StatusCompleted TxStatus = "completed"
	StatusFailed    TxStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s TxStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Wallet is a stored-value account owned by exactly one user.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	IsActive  bool
	CreatedAt time.Time
}

// Transaction is an immutable record of a balance mutation (or a pending
// reservation of one). Only Status may change after the row is written.
type Transaction struct {
	ID          string
	UserID      string
	WalletID    string
	Type        TxType
	Amount      decimal.Decimal
	Currency    string
	Reference   string
	Status      TxStatus
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Entry moves funds on a single wallet. A negative amount debits the wallet
// and is guarded against taking the balance below zero.
type Entry struct {
	WalletID string
	Amount   decimal.Decimal
}

// StatusUpdate flips a pending transaction to a terminal status.
type StatusUpdate struct {
	Reference string
	Status    TxStatus
}

// Posting is the unit of ledger mutation: balance entries, new transaction
// rows and status flips applied as one atomic unit. Either everything in the
// posting commits or nothing does, so a debit can never land without its
// paired credit or log write.
type Posting struct {
	Entries []Entry
	Records []Transaction
	Updates []StatusUpdate
}

// Store is the wallet-balance store plus its append-only transaction log.
type Store interface {
	CreateWallet(ctx context.Context, w Wallet) error
	Wallet(ctx context.Context, id string) (Wallet, error)
	WalletByUser(ctx context.Context, userID string) (Wallet, error)

	// Post applies the posting atomically, serialized per wallet.
	Post(ctx context.Context, p Posting) error

	TransactionByReference(ctx context.Context, reference string) (Transaction, error)
	TransactionsByUser(ctx context.Context, userID string, limit int) ([]Transaction, error)

	// CompletedTransferTotalSince sums completed outbound transfer amounts
	// for the user since the given instant. Backs the rolling daily cap.
	CompletedTransferTotalSince(ctx context.Context, userID string, since time.Time) (decimal.Decimal, error)
}
