package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/notification"
	"github.com/nairalink/nairalink/internal/transfer"
)

// ErrAlreadyRunning is returned when a tick is requested while a previous one
// is still executing. The caller gets an immediate answer, never a queue.
var ErrAlreadyRunning = errors.New("scheduler run already in progress")

// Failure describes one scheduled transfer that did not execute this tick.
type Failure struct {
	ScheduleID string
	Reason     string
	Permanent  bool
}

// Result summarizes a single scheduler run.
type Result struct {
	ExecutedCount int
	ExecutedRefs  []string
	Failures      []Failure
}

// Scheduler drives due scheduled transfers through the transfer engine. At
// most one run is in flight at any time.
type Scheduler struct {
	transfers *transfer.Service
	schedules transfer.ScheduleRepository
	notifier  notification.Notifier
	logger    *slog.Logger
	running   atomic.Bool
}

// New builds a scheduler.
func New(transfers *transfer.Service, schedules transfer.ScheduleRepository,
	notifier notification.Notifier, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		transfers: transfers,
		schedules: schedules,
		notifier:  notifier,
		logger:    logger,
	}
}

// RunNow executes a tick at the current time. A run already in progress is
// reported, not waited for.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	return s.Tick(ctx, time.Now().UTC())
}

// Tick executes all scheduled transfers due at or before now. Failures are
// isolated per item: one bad instruction never aborts the rest.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	due, err := s.schedules.DueBefore(ctx, now)
	if err != nil {
		return Result{}, fmt.Errorf("discover due transfers: %w", err)
	}

	var res Result
	for _, item := range due {
		ref, err := s.transfers.ExecuteScheduled(ctx, item)
		switch {
		case err == nil:
			if advErr := s.advance(ctx, item, now); advErr != nil {
				s.log().Error("advance schedule", "schedule_id", item.ID, "error", advErr)
			}
			res.ExecutedCount++
			res.ExecutedRefs = append(res.ExecutedRefs, ref)

		case errors.Is(err, transfer.ErrScheduleNotActive):
			// Paused or deleted between discovery and execution; skip.
			continue

		case errors.Is(err, ledger.ErrInsufficientFunds):
			// Left active: retried on the next tick.
			res.Failures = append(res.Failures, Failure{ScheduleID: item.ID, Reason: err.Error()})
			s.log().Warn("scheduled transfer deferred", "schedule_id", item.ID, "error", err)

		default:
			res.Failures = append(res.Failures, Failure{ScheduleID: item.ID, Reason: err.Error(), Permanent: true})
			s.fail(ctx, item, err)
		}
	}
	return res, nil
}

// advance moves the instruction to its next occurrence. The period is added
// to the previous scheduled date so a late tick does not shift the schedule.
func (s *Scheduler) advance(ctx context.Context, item transfer.ScheduledTransfer, now time.Time) error {
	item.ExecutionCount++
	item.LastExecutionDate = now

	next, recurs := item.Frequency.Next(item.NextExecutionDate)
	switch {
	case !recurs:
		item.Status = transfer.ScheduleCompleted
	case !item.EndDate.IsZero() && next.After(item.EndDate):
		item.NextExecutionDate = next
		item.Status = transfer.ScheduleCompleted
	default:
		item.NextExecutionDate = next
	}
	return s.schedules.Update(ctx, item)
}

// fail marks the instruction permanently failed and tells the owner.
func (s *Scheduler) fail(ctx context.Context, item transfer.ScheduledTransfer, cause error) {
	s.log().Error("scheduled transfer failed", "schedule_id", item.ID, "error", cause)
	item.Status = transfer.ScheduleFailed
	if err := s.schedules.Update(ctx, item); err != nil {
		s.log().Error("mark schedule failed", "schedule_id", item.ID, "error", err)
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Event{
			UserID:    item.UserID,
			Type:      notification.KindScheduleFailure,
			Title:     "Scheduled transfer failed",
			Message:   fmt.Sprintf("Your scheduled transfer of %s to %s could not be executed", item.Amount, item.RecipientEmail),
			Reference: item.ID,
		})
	}
}

// Start runs a tick on the given interval until the context is cancelled.
// Blocking; run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.RunNow(ctx)
			if err != nil {
				if !errors.Is(err, ErrAlreadyRunning) {
					s.log().Error("scheduler tick", "error", err)
				}
				continue
			}
			if res.ExecutedCount > 0 || len(res.Failures) > 0 {
				s.log().Info("scheduler tick",
					"executed", res.ExecutedCount,
					"failures", len(res.Failures),
				)
			}
		}
	}
}

func (s *Scheduler) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
