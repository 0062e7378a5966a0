package transfer

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
	schedules ScheduleRepository
	service   *Service
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	f := &fixture{
		store:     ledger.NewInMemory(),
		directory: directory.NewMemoryRepository(),
		schedules: NewMemoryScheduleRepository(),
	}
	f.service = NewService(f.store, f.directory, f.schedules, nil, nil, limits)
	return f
}

func testLimits() Limits {
	return Limits{
		MinAmount: decimal.NewFromInt(10),
		MaxAmount: decimal.NewFromInt(100_000),
		DailyCap:  decimal.NewFromInt(500_000),
	}
}

func (f *fixture) addUser(t *testing.T, email string, balance int64) (string, ledger.Wallet) {
	t.Helper()
	ctx := context.Background()
	userID := uuid.NewString()
	if err := f.directory.Create(ctx, directory.User{ID: userID, Email: email, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	w := ledger.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  "NGN",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.CreateWallet(ctx, w); err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	ledger.SeedBalance(f.store, w.ID, decimal.NewFromInt(balance))
	w.Balance = decimal.NewFromInt(balance)
	return userID, w
}

func TestTransferScenario(t *testing.T) {
	f := newFixture(t, testLimits())
	ctx := context.Background()
	senderID, senderWallet := f.addUser(t, "a@nairalink.test", 1_000)
	_, recipientWallet := f.addUser(t, "b@nairalink.test", 0)

	res, err := f.service.Initiate(ctx, InitiateInput{
		SenderID:       senderID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(300),
		Description:    "rent",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if res.Reference == "" || len(res.VerificationCode) != 6 {
		t.Fatalf("unexpected initiate result: %+v", res)
	}

	tx, err := f.store.TransactionByReference(ctx, res.Reference)
	if err != nil {
		t.Fatalf("pending lookup: %v", err)
	}
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", tx.Status)
	}

	// Wrong code rejects the call and leaves everything untouched.
	if _, err := f.service.Verify(ctx, res.Reference, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	w, _ := f.store.Wallet(ctx, senderWallet.ID)
	if !w.Balance.Equal(decimal.NewFromInt(1_000)) {
		t.Fatalf("balance changed on bad code: %s", w.Balance)
	}
	tx, _ = f.store.TransactionByReference(ctx, res.Reference)
	if tx.Status != ledger.StatusPending {
		t.Fatalf("expected still pending after bad code, got %s", tx.Status)
	}

	out, err := f.service.Verify(ctx, res.Reference, res.VerificationCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Status != ledger.StatusCompleted {
		t.Fatalf("expected completed, got %s", out.Status)
	}
	if !out.NewBalance.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("expected sender balance 700, got %s", out.NewBalance)
	}
	rw, _ := f.store.Wallet(ctx, recipientWallet.ID)
	if !rw.Balance.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected recipient balance 300, got %s", rw.Balance)
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture(t, testLimits())
	ctx := context.Background()
	senderID, senderWallet := f.addUser(t, "a@nairalink.test", 1_000)
	f.addUser(t, "b@nairalink.test", 0)

	res, err := f.service.Initiate(ctx, InitiateInput{
		SenderID:       senderID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	first, err := f.service.Verify(ctx, res.Reference, res.VerificationCode)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := f.service.Verify(ctx, res.Reference, res.VerificationCode)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if first.Status != second.Status || !first.NewBalance.Equal(second.NewBalance) {
		t.Fatalf("verify not idempotent: %+v vs %+v", first, second)
	}
	w, _ := f.store.Wallet(ctx, senderWallet.ID)
	if !w.Balance.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("balance re-applied on second verify: %s", w.Balance)
	}
}

func TestInitiateEnforcesLimits(t *testing.T) {
	f := newFixture(t, testLimits())
	ctx := context.Background()
	senderID, _ := f.addUser(t, "a@nairalink.test", 1_000_000)

	cases := []struct {
		name   string
		amount int64
		want   error
	}{
		{"below minimum", 5, ErrAmountBelowMinimum},
		{"above maximum", 200_000, ErrAmountAboveMaximum},
	}
	for _, tc := range cases {
		if _, err := f.service.Initiate(ctx, InitiateInput{
			SenderID:       senderID,
			RecipientEmail: "b@nairalink.test",
			Amount:         decimal.NewFromInt(tc.amount),
		}); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if _, err := f.service.Initiate(ctx, InitiateInput{
		SenderID: senderID,
		Amount:   decimal.NewFromInt(100),
	}); !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("expected recipient required, got %v", err)
	}
}

func TestInitiateEnforcesDailyCap(t *testing.T) {
	limits := testLimits()
	limits.DailyCap = decimal.NewFromInt(500)
	f := newFixture(t, limits)
	ctx := context.Background()
	senderID, _ := f.addUser(t, "a@nairalink.test", 100_000)
	f.addUser(t, "b@nairalink.test", 0)

	res, err := f.service.Initiate(ctx, InitiateInput{
		SenderID:       senderID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(300),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := f.service.Verify(ctx, res.Reference, res.VerificationCode); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// 300 already sent today; another 300 would breach the 500 cap.
	if _, err := f.service.Initiate(ctx, InitiateInput{
		SenderID:       senderID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(300),
	}); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("expected daily limit exceeded, got %v", err)
	}
}

func TestVerifyFailsWhenBalanceDropped(t *testing.T) {
	f := newFixture(t, testLimits())
	ctx := context.Background()
	senderID, senderWallet := f.addUser(t, "a@nairalink.test", 1_000)
	f.addUser(t, "b@nairalink.test", 0)

	res, err := f.service.Initiate(ctx, InitiateInput{
		SenderID:       senderID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(800),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Balance changed between initiate and verify.
	ledger.SeedBalance(f.store, senderWallet.ID, decimal.NewFromInt(100))

	out, err := f.service.Verify(ctx, res.Reference, res.VerificationCode)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if out.Status != ledger.StatusFailed {
		t.Fatalf("expected failed status, got %s", out.Status)
	}
	tx, _ := f.store.TransactionByReference(ctx, res.Reference)
	if tx.Status != ledger.StatusFailed {
		t.Fatalf("transaction not marked failed: %s", tx.Status)
	}
	w, _ := f.store.Wallet(ctx, senderWallet.ID)
	if !w.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance mutated on failed verify: %s", w.Balance)
	}
}

func TestTransferToUnknownRecipientCompletesSenderSide(t *testing.T) {
	f := newFixture(t, testLimits())
	ctx := context.Background()
	senderID, senderWallet := f.addUser(t, "a@nairalink.test", 1_000)

	res, err := f.service.Initiate(ctx, InitiateInput{
		SenderID:       senderID,
		RecipientEmail: "nobody@nairalink.test",
		Amount:         decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	out, err := f.service.Verify(ctx, res.Reference, res.VerificationCode)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Status != ledger.StatusCompleted || !out.NewBalance.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("unexpected result: %+v", out)
	}
	w, _ := f.store.Wallet(ctx, senderWallet.ID)
	if !w.Balance.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("expected 750, got %s", w.Balance)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	f := newFixture(t, testLimits())
	ctx := context.Background()
	userID, _ := f.addUser(t, "a@nairalink.test", 10_000)

	if _, err := f.service.CreateSchedule(ctx, CreateScheduleInput{
		UserID:         userID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(500),
		Frequency:      Frequency("fortnightly"),
	}); !errors.Is(err, ErrInvalidFrequency) {
		t.Fatalf("expected invalid frequency, got %v", err)
	}

	st, err := f.service.CreateSchedule(ctx, CreateScheduleInput{
		UserID:         userID,
		RecipientEmail: "b@nairalink.test",
		Amount:         decimal.NewFromInt(500),
		Frequency:      FrequencyDaily,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if st.Status != ScheduleActive {
		t.Fatalf("expected active, got %s", st.Status)
	}

	if _, err := f.service.PauseSchedule(ctx, st.ID, "intruder"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	paused, err := f.service.PauseSchedule(ctx, st.ID, userID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != SchedulePaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}

	// Execution refuses anything that is no longer active.
	if _, err := f.service.ExecuteScheduled(ctx, st); !errors.Is(err, ErrScheduleNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}

	if _, err := f.service.ResumeSchedule(ctx, st.ID, userID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := f.service.DeleteSchedule(ctx, st.ID, userID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.schedules.Get(ctx, st.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected deleted, got %v", err)
	}
}

func TestFrequencyNextAvoidsDrift(t *testing.T) {
	prev := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	next, ok := FrequencyDaily.Next(prev)
	if !ok || !next.Equal(prev.AddDate(0, 0, 1)) {
		t.Fatalf("daily next wrong: %v", next)
	}
	next, ok = FrequencyMonthly.Next(prev)
	if !ok || !next.Equal(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("monthly next wrong: %v", next)
	}
	if _, ok := FrequencyOneTime.Next(prev); ok {
		t.Fatal("one-time must not recur")
	}
}
