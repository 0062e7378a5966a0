package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

func TestCreateAndFund(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := uuid.NewString()
	w, err := svc.Create(ctx, CreateInput{UserID: userID})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if w.Currency != "NGN" {
		t.Fatalf("expected default currency NGN, got %s", w.Currency)
	}

	res, err := svc.Fund(ctx, MoveInput{UserID: userID, Amount: decimal.NewFromInt(5_000)})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if !res.NewBalance.Equal(decimal.NewFromInt(5_000)) {
		t.Fatalf("expected balance 5000, got %s", res.NewBalance)
	}

	tx, err := store.TransactionByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("transaction lookup: %v", err)
	}
	if tx.Type != ledger.TxFunding || tx.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected transaction %s/%s", tx.Type, tx.Status)
	}
}

func TestWithdrawGuardsBalance(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := uuid.NewString()
	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := svc.Fund(ctx, MoveInput{UserID: userID, Amount: decimal.NewFromInt(1_000)}); err != nil {
		t.Fatalf("fund: %v", err)
	}

	if _, err := svc.Withdraw(ctx, MoveInput{UserID: userID, Amount: decimal.NewFromInt(2_000)}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	res, err := svc.Withdraw(ctx, MoveInput{UserID: userID, Amount: decimal.NewFromInt(400)})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !res.NewBalance.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected balance 600, got %s", res.NewBalance)
	}
}

func TestMoveRejectsNonPositiveAmount(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	userID := uuid.NewString()
	if _, err := svc.Create(ctx, CreateInput{UserID: userID}); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := svc.Fund(ctx, MoveInput{UserID: userID, Amount: decimal.Zero}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}
