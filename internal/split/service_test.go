package split

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/directory"
	"github.com/nairalink/nairalink/internal/ledger"
)

type fixture struct {
	store     ledger.Store
	directory directory.Directory
	repo      Repository
	service   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     ledger.NewInMemory(),
		directory: directory.NewMemoryRepository(),
		repo:      NewMemoryRepository(),
	}
	f.service = NewService(f.repo, f.store, f.directory, nil, nil)
	return f
}

func (f *fixture) addUser(t *testing.T, email string, balance int64) string {
	t.Helper()
	ctx := context.Background()
	userID := uuid.NewString()
	if err := f.directory.Create(ctx, directory.User{ID: userID, Email: email, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	w := ledger.Wallet{ID: uuid.NewString(), UserID: userID, Currency: "NGN", IsActive: true, CreatedAt: time.Now().UTC()}
	if err := f.store.CreateWallet(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	ledger.SeedBalance(f.store, w.ID, decimal.NewFromInt(balance))
	return userID
}

func (f *fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	w, err := f.store.WalletByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("wallet for %s: %v", userID, err)
	}
	return w.Balance
}

func TestContributePoolsFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.addUser(t, "ada@nairalink.test", 1_000)
	bola := f.addUser(t, "bola@nairalink.test", 1_000)

	g, err := f.service.CreateGroup(ctx, "Flatmates", ada)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := f.service.Join(ctx, g.InviteCode, bola); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.NewFromInt(400)); err != nil {
		t.Fatalf("contribute ada: %v", err)
	}
	if _, err := f.service.Contribute(ctx, g.ID, bola, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("contribute bola: %v", err)
	}

	updated, _ := f.repo.Group(ctx, g.ID)
	if !updated.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("pool balance %s, want 500", updated.Balance)
	}
	if got := f.balance(t, ada); !got.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("ada balance %s, want 600", got)
	}

	debts, err := f.service.Debts(ctx, g.ID, ada)
	if err != nil {
		t.Fatalf("debts: %v", err)
	}
	// Fair share is 250: bola owes ada 150.
	if len(debts) != 1 || debts[0].FromUserID != bola || debts[0].ToUserID != ada ||
		!debts[0].Amount.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("unexpected debts %+v", debts)
	}
}

func TestContributeGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.addUser(t, "ada@nairalink.test", 100)
	outsider := f.addUser(t, "out@nairalink.test", 1_000)

	g, err := f.service.CreateGroup(ctx, "Flatmates", ada)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err := f.service.Contribute(ctx, g.ID, outsider, decimal.NewFromInt(10)); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected not member, got %v", err)
	}
	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.NewFromInt(500)); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	updated, _ := f.repo.Group(ctx, g.ID)
	if !updated.Balance.IsZero() {
		t.Fatalf("failed contribution credited pool: %s", updated.Balance)
	}
}

func TestPayWithoutApprovalSettlesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.addUser(t, "ada@nairalink.test", 1_000)
	landlord := f.addUser(t, "landlord@nairalink.test", 0)

	g, _ := f.service.CreateGroup(ctx, "Flatmates", ada)
	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	p, err := f.service.Pay(ctx, PayInput{
		GroupID:        g.ID,
		InitiatorID:    ada,
		RecipientEmail: "landlord@nairalink.test",
		Amount:         decimal.NewFromInt(300),
		Description:    "Rent",
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if p.Status != PaymentCompleted {
		t.Fatalf("expected completed, got %s", p.Status)
	}

	updated, _ := f.repo.Group(ctx, g.ID)
	if !updated.Balance.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("pool balance %s, want 200", updated.Balance)
	}
	if got := f.balance(t, landlord); !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("recipient balance %s, want 300", got)
	}

	tx, err := f.store.TransactionByReference(ctx, p.Reference)
	if err != nil {
		t.Fatalf("payment transaction: %v", err)
	}
	if tx.Type != ledger.TxSplitPayment || tx.Status != ledger.StatusCompleted {
		t.Fatalf("unexpected transaction %+v", tx)
	}
}

func TestPayExceedingPoolRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.addUser(t, "ada@nairalink.test", 1_000)
	f.addUser(t, "landlord@nairalink.test", 0)

	g, _ := f.service.CreateGroup(ctx, "Flatmates", ada)
	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	_, err := f.service.Pay(ctx, PayInput{
		GroupID:        g.ID,
		InitiatorID:    ada,
		RecipientEmail: "landlord@nairalink.test",
		Amount:         decimal.NewFromInt(500),
	})
	if !errors.Is(err, ErrPoolInsufficient) {
		t.Fatalf("expected pool insufficient, got %v", err)
	}
}

func TestApprovalThresholdSettlesExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.addUser(t, "ada@nairalink.test", 1_000)
	bola := f.addUser(t, "bola@nairalink.test", 1_000)
	chidi := f.addUser(t, "chidi@nairalink.test", 1_000)
	landlord := f.addUser(t, "landlord@nairalink.test", 0)

	g, _ := f.service.CreateGroup(ctx, "Flatmates", ada)
	if _, err := f.service.Join(ctx, g.InviteCode, bola); err != nil {
		t.Fatalf("join bola: %v", err)
	}
	if _, err := f.service.Join(ctx, g.InviteCode, chidi); err != nil {
		t.Fatalf("join chidi: %v", err)
	}
	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.NewFromInt(600)); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	p, err := f.service.Pay(ctx, PayInput{
		GroupID:          g.ID,
		InitiatorID:      ada,
		RecipientEmail:   "landlord@nairalink.test",
		Amount:           decimal.NewFromInt(600),
		RequiresApproval: true,
		MinApprovals:     2,
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	// The initiator's implicit vote alone does not meet the threshold.
	if p.Status != PaymentPending || len(p.Approvals) != 1 {
		t.Fatalf("expected pending with initiator vote, got %+v", p)
	}
	if got := f.balance(t, landlord); !got.IsZero() {
		t.Fatalf("funds moved before approval: %s", got)
	}

	if _, err := f.service.Approve(ctx, p.ID, ada); !errors.Is(err, ErrAlreadyApproved) {
		t.Fatalf("expected already approved, got %v", err)
	}

	approved, err := f.service.Approve(ctx, p.ID, bola)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != PaymentCompleted {
		t.Fatalf("expected completed, got %s", approved.Status)
	}
	if got := f.balance(t, landlord); !got.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("recipient balance %s, want 600", got)
	}
	updated, _ := f.repo.Group(ctx, g.ID)
	if !updated.Balance.IsZero() {
		t.Fatalf("pool balance %s, want 0", updated.Balance)
	}

	// A vote after completion must not decrement the pool again.
	if _, err := f.service.Approve(ctx, p.ID, chidi); !errors.Is(err, ErrPaymentNotPending) {
		t.Fatalf("expected not pending, got %v", err)
	}
	updated, _ = f.repo.Group(ctx, g.ID)
	if !updated.Balance.IsZero() {
		t.Fatalf("pool decremented twice: %s", updated.Balance)
	}
	if got := f.balance(t, landlord); !got.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("recipient credited twice: %s", got)
	}
}

func TestMembershipLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.addUser(t, "ada@nairalink.test", 1_000)
	bola := f.addUser(t, "bola@nairalink.test", 1_000)

	g, _ := f.service.CreateGroup(ctx, "Flatmates", ada)
	if _, err := f.service.Join(ctx, g.InviteCode, bola); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.Join(ctx, g.InviteCode, bola); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected already member, got %v", err)
	}
	if err := f.service.Leave(ctx, g.ID, ada); !errors.Is(err, ErrCreatorCannotLeave) {
		t.Fatalf("expected creator cannot leave, got %v", err)
	}
	if err := f.service.Leave(ctx, g.ID, bola); err != nil {
		t.Fatalf("leave: %v", err)
	}

	if err := f.service.Delete(ctx, g.ID, bola); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected not creator, got %v", err)
	}

	if _, err := f.service.Contribute(ctx, g.ID, ada, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if err := f.service.Delete(ctx, g.ID, ada); !errors.Is(err, ErrPoolNotEmpty) {
		t.Fatalf("expected pool not empty, got %v", err)
	}
}
