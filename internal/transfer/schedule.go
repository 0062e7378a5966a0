package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

// CreateScheduleInput captures a new recurring transfer instruction.
type CreateScheduleInput struct {
	UserID         string
	RecipientEmail string
	Amount         decimal.Decimal
	Description    string
	Frequency      Frequency
	FirstExecution time.Time
	EndDate        time.Time
}

// CreateSchedule records a scheduled transfer owned by the user. The first
// execution defaults to now, making the instruction due on the next tick.
func (s *Service) CreateSchedule(ctx context.Context, input CreateScheduleInput) (ScheduledTransfer, error) {
	if input.RecipientEmail == "" {
		return ScheduledTransfer{}, ErrRecipientRequired
	}
	if !input.Frequency.Valid() {
		return ScheduledTransfer{}, ErrInvalidFrequency
	}
	if input.Amount.LessThan(s.limits.MinAmount) {
		return ScheduledTransfer{}, ErrAmountBelowMinimum
	}
	if s.limits.MaxAmount.IsPositive() && input.Amount.GreaterThan(s.limits.MaxAmount) {
		return ScheduledTransfer{}, ErrAmountAboveMaximum
	}
	if _, err := s.store.WalletByUser(ctx, input.UserID); err != nil {
		return ScheduledTransfer{}, err
	}

	first := input.FirstExecution
	if first.IsZero() {
		first = time.Now().UTC()
	}

	st := ScheduledTransfer{
		ID:                uuid.NewString(),
		UserID:            input.UserID,
		RecipientEmail:    input.RecipientEmail,
		Amount:            input.Amount,
		Description:       input.Description,
		Frequency:         input.Frequency,
		NextExecutionDate: first.UTC(),
		Status:            ScheduleActive,
		EndDate:           input.EndDate,
		CreatedAt:         time.Now().UTC(),
	}
	// Recipient resolution is best effort; the recipient may register later.
	if user, err := s.directory.FindByEmail(ctx, input.RecipientEmail); err == nil {
		st.RecipientID = user.ID
	}
	if err := s.schedules.Create(ctx, st); err != nil {
		return ScheduledTransfer{}, err
	}
	return st, nil
}

// PauseSchedule suspends an active instruction.
func (s *Service) PauseSchedule(ctx context.Context, id, userID string) (ScheduledTransfer, error) {
	return s.setScheduleStatus(ctx, id, userID, ScheduleActive, SchedulePaused)
}

// ResumeSchedule reactivates a paused instruction.
func (s *Service) ResumeSchedule(ctx context.Context, id, userID string) (ScheduledTransfer, error) {
	return s.setScheduleStatus(ctx, id, userID, SchedulePaused, ScheduleActive)
}

func (s *Service) setScheduleStatus(ctx context.Context, id, userID string, from, to ScheduleStatus) (ScheduledTransfer, error) {
	st, err := s.schedules.Get(ctx, id)
	if err != nil {
		return ScheduledTransfer{}, err
	}
	if st.UserID != userID {
		return ScheduledTransfer{}, ErrNotOwner
	}
	if st.Status != from {
		return ScheduledTransfer{}, ErrScheduleNotActive
	}
	st.Status = to
	if err := s.schedules.Update(ctx, st); err != nil {
		return ScheduledTransfer{}, err
	}
	return st, nil
}

// DeleteSchedule removes the instruction entirely.
func (s *Service) DeleteSchedule(ctx context.Context, id, userID string) error {
	st, err := s.schedules.Get(ctx, id)
	if err != nil {
		return err
	}
	if st.UserID != userID {
		return ErrNotOwner
	}
	return s.schedules.Delete(ctx, id)
}

// SchedulesByUser lists the user's scheduled transfers.
func (s *Service) SchedulesByUser(ctx context.Context, userID string) ([]ScheduledTransfer, error) {
	return s.schedules.ByUser(ctx, userID)
}

// ExecuteScheduled moves the funds for one due instruction without the OTP
// handshake. It re-reads the instruction and refuses to run unless it is
// still active, so a pause or delete racing the scheduler cannot cause a
// partial or double execution.
func (s *Service) ExecuteScheduled(ctx context.Context, st ScheduledTransfer) (string, error) {
	current, err := s.schedules.Get(ctx, st.ID)
	if err != nil {
		return "", err
	}
	if current.Status != ScheduleActive {
		return "", ErrScheduleNotActive
	}

	w, err := s.store.WalletByUser(ctx, st.UserID)
	if err != nil {
		return "", err
	}

	reference := uuid.NewString()
	debit := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      st.UserID,
		WalletID:    w.ID,
		Type:        ledger.TxTransfer,
		Amount:      st.Amount,
		Currency:    w.Currency,
		Reference:   reference,
		Status:      ledger.StatusCompleted,
		Description: st.Description,
		Metadata: map[string]string{
			ledger.MetaDirection: ledger.DirectionDebit,
			metaRecipientEmail:   st.RecipientEmail,
			metaScheduleID:       st.ID,
		},
		CreatedAt: time.Now().UTC(),
	}

	posting := ledger.Posting{
		Entries: []ledger.Entry{{WalletID: w.ID, Amount: st.Amount.Neg()}},
		Records: []ledger.Transaction{debit},
	}
	recipientWallet, recipientFound := s.resolveRecipient(ctx, st.RecipientEmail, st.RecipientID)
	if recipientFound {
		posting.Entries = append(posting.Entries, ledger.Entry{WalletID: recipientWallet.ID, Amount: st.Amount})
		posting.Records = append(posting.Records, mirroredCredit(debit, recipientWallet))
	}

	if err := s.store.Post(ctx, posting); err != nil {
		return "", err
	}

	if s.emitter != nil {
		s.emitter.TransactionCompleted(ctx, debit)
	}
	s.notifyTransfer(ctx, debit, recipientWallet, recipientFound)
	return reference, nil
}
