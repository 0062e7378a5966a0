package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/directory"
	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/notification"
	"github.com/nairalink/nairalink/internal/transfer"
)

type testNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *testNotifier) Send(_ context.Context, e notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *testNotifier) byType(kind string) []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Event
	for _, e := range n.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     ledger.Store
	directory directory.Directory
	schedules transfer.ScheduleRepository
	transfers *transfer.Service
	notifier  *testNotifier
	scheduler *Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     ledger.NewInMemory(),
		directory: directory.NewMemoryRepository(),
		schedules: transfer.NewMemoryScheduleRepository(),
		notifier:  &testNotifier{},
	}
	limits := transfer.Limits{MinAmount: decimal.NewFromInt(1)}
	f.transfers = transfer.NewService(f.store, f.directory, f.schedules, nil, f.notifier, limits)
	f.scheduler = New(f.transfers, f.schedules, f.notifier, nil)
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

func (f *fixture) addSchedule(t *testing.T, userID, recipient string, amount int64, freq transfer.Frequency, due time.Time) transfer.ScheduledTransfer {
	t.Helper()
	st, err := f.transfers.CreateSchedule(context.Background(), transfer.CreateScheduleInput{
		UserID:         userID,
		RecipientEmail: recipient,
		Amount:         decimal.NewFromInt(amount),
		Frequency:      freq,
		FirstExecution: due,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return st
}

func TestTickExecutesDueExactlyOnceWithoutDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.addUser(t, "sender@nairalink.test", 10_000)
	recipient := f.addUser(t, "recipient@nairalink.test", 0)

	due := time.Now().UTC().Add(-3 * time.Hour).Truncate(time.Second)
	st := f.addSchedule(t, sender, "recipient@nairalink.test", 1_000, transfer.FrequencyDaily, due)

	now := time.Now().UTC()
	res, err := f.scheduler.Tick(ctx, now)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.ExecutedCount != 1 || len(res.ExecutedRefs) != 1 {
		t.Fatalf("expected one execution, got %+v", res)
	}

	updated, err := f.schedules.Get(ctx, st.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	// Drift-free: one day past the previous scheduled date, not past now.
	if want := due.AddDate(0, 0, 1); !updated.NextExecutionDate.Equal(want) {
		t.Fatalf("expected next %v, got %v", want, updated.NextExecutionDate)
	}
	if updated.ExecutionCount != 1 {
		t.Fatalf("expected execution count 1, got %d", updated.ExecutionCount)
	}
	if !updated.LastExecutionDate.Equal(now) {
		t.Fatalf("expected last execution %v, got %v", now, updated.LastExecutionDate)
	}

	senderWallet, _ := f.store.WalletByUser(ctx, sender)
	recipientWallet, _ := f.store.WalletByUser(ctx, recipient)
	if !senderWallet.Balance.Equal(decimal.NewFromInt(9_000)) || !recipientWallet.Balance.Equal(decimal.NewFromInt(1_000)) {
		t.Fatalf("unexpected balances %s / %s", senderWallet.Balance, recipientWallet.Balance)
	}

	// Nothing further is due; a second tick is a no-op.
	res, err = f.scheduler.Tick(ctx, now)
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if res.ExecutedCount != 0 {
		t.Fatalf("expected no executions on second tick, got %d", res.ExecutedCount)
	}
}

func TestTickInsufficientFundsLeavesItemActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.addUser(t, "sender@nairalink.test", 100)
	f.addUser(t, "recipient@nairalink.test", 0)

	st := f.addSchedule(t, sender, "recipient@nairalink.test", 1_000, transfer.FrequencyDaily, time.Now().UTC().Add(-time.Hour))

	res, err := f.scheduler.Tick(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.ExecutedCount != 0 || len(res.Failures) != 1 || res.Failures[0].Permanent {
		t.Fatalf("expected one transient failure, got %+v", res)
	}

	updated, _ := f.schedules.Get(ctx, st.ID)
	if updated.Status != transfer.ScheduleActive {
		t.Fatalf("expected still active for retry, got %s", updated.Status)
	}
	if updated.ExecutionCount != 0 {
		t.Fatalf("execution count advanced on failure: %d", updated.ExecutionCount)
	}
}

func TestTickPermanentFailureMarksFailedAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.addUser(t, "sender@nairalink.test", 10_000)
	f.addUser(t, "recipient@nairalink.test", 0)

	st := f.addSchedule(t, sender, "recipient@nairalink.test", 1_000, transfer.FrequencyDaily, time.Now().UTC().Add(-time.Hour))

	// Deactivate the sender wallet after the fact: execution now fails for a
	// reason that retrying cannot fix.
	w, _ := f.store.WalletByUser(ctx, sender)
	deactivate(t, f.store, w)

	res, err := f.scheduler.Tick(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(res.Failures) != 1 || !res.Failures[0].Permanent {
		t.Fatalf("expected permanent failure, got %+v", res)
	}
	updated, _ := f.schedules.Get(ctx, st.ID)
	if updated.Status != transfer.ScheduleFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if got := f.notifier.byType(notification.KindScheduleFailure); len(got) != 1 || got[0].UserID != sender {
		t.Fatalf("expected one failure notification to owner, got %+v", got)
	}
}

func TestTickIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	broke := f.addUser(t, "broke@nairalink.test", 0)
	funded := f.addUser(t, "funded@nairalink.test", 10_000)
	f.addUser(t, "recipient@nairalink.test", 0)

	due := time.Now().UTC().Add(-time.Hour)
	f.addSchedule(t, broke, "recipient@nairalink.test", 1_000, transfer.FrequencyDaily, due.Add(-time.Minute))
	f.addSchedule(t, funded, "recipient@nairalink.test", 1_000, transfer.FrequencyDaily, due)

	res, err := f.scheduler.Tick(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.ExecutedCount != 1 || len(res.Failures) != 1 {
		t.Fatalf("expected one success and one failure, got %+v", res)
	}
}

func TestTickCompletesOneTimeAndEndDated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.addUser(t, "sender@nairalink.test", 10_000)
	f.addUser(t, "recipient@nairalink.test", 0)

	due := time.Now().UTC().Add(-time.Hour)
	oneTime := f.addSchedule(t, sender, "recipient@nairalink.test", 500, transfer.FrequencyOneTime, due)

	ending, err := f.transfers.CreateSchedule(ctx, transfer.CreateScheduleInput{
		UserID:         sender,
		RecipientEmail: "recipient@nairalink.test",
		Amount:         decimal.NewFromInt(500),
		Frequency:      transfer.FrequencyDaily,
		FirstExecution: due,
		EndDate:        due.Add(12 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create ending schedule: %v", err)
	}

	if _, err := f.scheduler.Tick(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	got, _ := f.schedules.Get(ctx, oneTime.ID)
	if got.Status != transfer.ScheduleCompleted {
		t.Fatalf("one-time not completed: %s", got.Status)
	}
	got, _ = f.schedules.Get(ctx, ending.ID)
	if got.Status != transfer.ScheduleCompleted {
		t.Fatalf("end-dated not completed: %s", got.Status)
	}
}

// blockingRepo delays discovery until released so a second run can be
// attempted while the first is mid-tick.
type blockingRepo struct {
	transfer.ScheduleRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRepo) DueBefore(ctx context.Context, now time.Time) ([]transfer.ScheduledTransfer, error) {
	r.once.Do(func() {
		close(r.entered)
		<-r.release
	})
	return r.ScheduleRepository.DueBefore(ctx, now)
}

func TestRunNowRefusesConcurrentRun(t *testing.T) {
	f := newFixture(t)
	blocked := &blockingRepo{
		ScheduleRepository: f.schedules,
		entered:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	sched := New(f.transfers, blocked, f.notifier, nil)

	done := make(chan error, 1)
	go func() {
		_, err := sched.RunNow(context.Background())
		done <- err
	}()

	<-blocked.entered
	if _, err := sched.RunNow(context.Background()); err != ErrAlreadyRunning {
		t.Fatalf("expected already running, got %v", err)
	}
	close(blocked.release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}

	// And the guard releases once the run finishes.
	if _, err := sched.RunNow(context.Background()); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

func deactivate(t *testing.T, s ledger.Store, w ledger.Wallet) {
	t.Helper()
	ledger.Deactivate(s, w.ID)
}
