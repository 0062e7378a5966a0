package transfer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency controls how a scheduled transfer recurs.
type Frequency string

const (
	FrequencyOneTime Frequency = "one_time"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ErrInvalidFrequency rejects unknown recurrence values.
var ErrInvalidFrequency = errors.New("invalid frequency")

// Valid reports whether the frequency is one of the supported values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOneTime, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Next returns the occurrence after prev. The period is added to the
// previous scheduled date, not to the execution time, so late ticks do not
// drift the schedule. One-time frequencies have no next occurrence.
func (f Frequency) Next(prev time.Time) (time.Time, bool) {
	switch f {
	case FrequencyDaily:
		return prev.AddDate(0, 0, 1), true
	case FrequencyWeekly:
		return prev.AddDate(0, 0, 7), true
	case FrequencyMonthly:
		return prev.AddDate(0, 1, 0), true
	default:
		return time.Time{}, false
	}
}

// ScheduleStatus is the lifecycle state of a scheduled transfer.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	SchedulePaused    ScheduleStatus = "paused"
	ScheduleCompleted ScheduleStatus = "completed"
	ScheduleFailed    ScheduleStatus = "failed"
)

// ScheduledTransfer is a recurring payment instruction owned by a user and
// advanced by the scheduler.
type ScheduledTransfer struct {
	ID                string
	UserID            string
	RecipientEmail    string
	RecipientID       string
	Amount            decimal.Decimal
	Description       string
	Frequency         Frequency
	NextExecutionDate time.Time
	LastExecutionDate time.Time
	ExecutionCount    int
	Status            ScheduleStatus
	EndDate           time.Time
	CreatedAt         time.Time
}
