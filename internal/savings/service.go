package savings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/events"
	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/notification"
)

// ErrInvalidContribution rejects non-positive contribution amounts.
var ErrInvalidContribution = errors.New("contribution amount must be positive")

// Metadata keys written on circle transactions.
const (
	metaCircleID = "circle_id"
	metaCycle    = "cycle"
)

// Service manages rotating savings circles. Contributions debit the member's
// wallet into the circle pool; the cycle's final contribution releases the
// whole pool to the member at the payout position in the same posting.
type Service struct {
	repo     Repository
	store    ledger.Store
	emitter  events.Emitter
	notifier notification.Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService builds a savings circle service.
func NewService(repo Repository, store ledger.Store, emitter events.Emitter, notifier notification.Notifier) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		emitter:  emitter,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lock serializes mutations per circle so two contributions cannot interleave
// between read and update of the rotation state.
func (s *Service) lock(circleID string) func() {
	s.mu.Lock()
	l, ok := s.locks[circleID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[circleID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateInput describes a new circle. The creator automatically joins at
// rotation position zero.
type CreateInput struct {
	Name               string
	CreatorID          string
	ContributionAmount decimal.Decimal
	Currency           string
	Frequency          Frequency
	TotalCycles        int
}

// Create opens a circle and returns it with its invite code.
func (s *Service) Create(ctx context.Context, input CreateInput) (Circle, error) {
	if !input.ContributionAmount.IsPositive() {
		return Circle{}, ErrInvalidContribution
	}
	if !input.Frequency.Valid() {
		return Circle{}, ErrInvalidFrequency
	}
	if _, err := s.store.WalletByUser(ctx, input.CreatorID); err != nil {
		return Circle{}, err
	}

	code, err := generateInviteCode()
	if err != nil {
		return Circle{}, err
	}
	currency := input.Currency
	if currency == "" {
		currency = "NGN"
	}
	c := Circle{
		ID:                 uuid.NewString(),
		Name:               input.Name,
		CreatorID:          input.CreatorID,
		ContributionAmount: input.ContributionAmount,
		Currency:           currency,
		Frequency:          input.Frequency,
		TotalCycles:        input.TotalCycles,
		Members: []Member{{
			UserID: input.CreatorID,
		}},
		IsActive:   true,
		InviteCode: code,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Circle{}, err
	}
	return c, nil
}

// Get returns a circle for one of its members.
func (s *Service) Get(ctx context.Context, circleID, userID string) (Circle, error) {
	c, err := s.repo.Get(ctx, circleID)
	if err != nil {
		return Circle{}, err
	}
	if _, ok := c.MemberByUser(userID); !ok {
		return Circle{}, ErrNotMember
	}
	return c, nil
}

// ByUser lists the circles the user belongs to.
func (s *Service) ByUser(ctx context.Context, userID string) ([]Circle, error) {
	return s.repo.ByUser(ctx, userID)
}

// Join adds the user to the circle named by the invite code. Joining is only
// possible before the rotation starts: once anyone has contributed, membership
// is frozen so the payout order stays a fixed permutation.
func (s *Service) Join(ctx context.Context, inviteCode, userID string) (Circle, error) {
	c, err := s.repo.GetByInviteCode(ctx, inviteCode)
	if err != nil {
		return Circle{}, err
	}
	unlock := s.lock(c.ID)
	defer unlock()

	c, err = s.repo.Get(ctx, c.ID)
	if err != nil {
		return Circle{}, err
	}
	if !c.IsActive {
		return Circle{}, ErrCircleInactive
	}
	if c.started() {
		return Circle{}, ErrCircleStarted
	}
	if _, ok := c.MemberByUser(userID); ok {
		return Circle{}, ErrAlreadyMember
	}
	if _, err := s.store.WalletByUser(ctx, userID); err != nil {
		return Circle{}, err
	}

	c.Members = append(c.Members, Member{
		UserID:   userID,
		Position: len(c.Members),
	})
	if err := s.repo.Update(ctx, c); err != nil {
		return Circle{}, err
	}
	return c, nil
}

// Leave removes the user before the rotation starts. The creator cannot
// leave; they delete the circle instead.
func (s *Service) Leave(ctx context.Context, circleID, userID string) error {
	unlock := s.lock(circleID)
	defer unlock()

	c, err := s.repo.Get(ctx, circleID)
	if err != nil {
		return err
	}
	if c.CreatorID == userID {
		return ErrCreatorCannotLeave
	}
	m, ok := c.MemberByUser(userID)
	if !ok {
		return ErrNotMember
	}
	if c.started() {
		return ErrCircleStarted
	}

	members := make([]Member, 0, len(c.Members)-1)
	for _, existing := range c.Members {
		if existing.UserID == userID {
			continue
		}
		// Close the gap so positions stay a permutation of 0..n-1.
		if existing.Position > m.Position {
			existing.Position--
		}
		members = append(members, existing)
	}
	c.Members = members
	return s.repo.Update(ctx, c)
}

// Delete removes a circle. Only the creator may delete, and only before the
// rotation starts; afterwards funds are owed and the circle must run to
// completion.
func (s *Service) Delete(ctx context.Context, circleID, userID string) error {
	unlock := s.lock(circleID)
	defer unlock()

	c, err := s.repo.Get(ctx, circleID)
	if err != nil {
		return err
	}
	if c.CreatorID != userID {
		return ErrNotCreator
	}
	if c.started() {
		return ErrCircleStarted
	}
	return s.repo.Delete(ctx, circleID)
}

// ContributeResult reports the outcome of a contribution, including the
// payout it triggered if it closed the cycle.
type ContributeResult struct {
	Circle          Circle
	Reference       string
	PayoutTriggered bool
	PayoutUserID    string
	PayoutAmount    decimal.Decimal
}

// Contribute records the member's payment for the current cycle. The debit
// and, when this is the cycle's last contribution, the payout credit post as
// one atomic unit: the pool can never release without every member having
// paid in.
func (s *Service) Contribute(ctx context.Context, circleID, userID string) (ContributeResult, error) {
	unlock := s.lock(circleID)
	defer unlock()

	c, err := s.repo.Get(ctx, circleID)
	if err != nil {
		return ContributeResult{}, err
	}
	if !c.IsActive {
		return ContributeResult{}, ErrCircleInactive
	}
	m, ok := c.MemberByUser(userID)
	if !ok {
		return ContributeResult{}, ErrNotMember
	}
	if m.HasPaidCurrentCycle {
		return ContributeResult{}, ErrAlreadyPaid
	}

	// First contribution ever freezes the rotation length: every member
	// receives the pool exactly once unless a longer run was requested.
	if !c.started() && c.TotalCycles < len(c.Members) {
		c.TotalCycles = len(c.Members)
	}

	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return ContributeResult{}, err
	}

	reference := uuid.NewString()
	now := time.Now().UTC()
	contribution := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		WalletID:    wallet.ID,
		Type:        ledger.TxSavingsContribution,
		Amount:      c.ContributionAmount,
		Currency:    c.Currency,
		Reference:   reference,
		Status:      ledger.StatusCompleted,
		Description: fmt.Sprintf("Contribution to %s (cycle %d)", c.Name, c.CurrentCycle+1),
		Metadata: map[string]string{
			ledger.MetaDirection: ledger.DirectionDebit,
			metaCircleID:         c.ID,
			metaCycle:            fmt.Sprintf("%d", c.CurrentCycle),
		},
		CreatedAt: now,
	}
	posting := ledger.Posting{
		Entries: []ledger.Entry{{WalletID: wallet.ID, Amount: c.ContributionAmount.Neg()}},
		Records: []ledger.Transaction{contribution},
	}

	m.HasPaidCurrentCycle = true
	m.TotalContributed = m.TotalContributed.Add(c.ContributionAmount)

	res := ContributeResult{Reference: reference}
	var payoutTx ledger.Transaction
	if c.AllPaid() {
		recipient, ok := c.MemberAtPosition(c.CurrentPayoutPosition)
		if !ok {
			return ContributeResult{}, fmt.Errorf("no member at payout position %d", c.CurrentPayoutPosition)
		}
		recipientWallet, err := s.store.WalletByUser(ctx, recipient.UserID)
		if err != nil {
			m.HasPaidCurrentCycle = false
			m.TotalContributed = m.TotalContributed.Sub(c.ContributionAmount)
			return ContributeResult{}, err
		}
		payout := c.PayoutAmount()
		payoutTx = ledger.Transaction{
			ID:          uuid.NewString(),
			UserID:      recipient.UserID,
			WalletID:    recipientWallet.ID,
			Type:        ledger.TxSavingsPayout,
			Amount:      payout,
			Currency:    c.Currency,
			Reference:   uuid.NewString(),
			Status:      ledger.StatusCompleted,
			Description: fmt.Sprintf("Payout from %s (cycle %d)", c.Name, c.CurrentCycle+1),
			Metadata: map[string]string{
				ledger.MetaDirection: ledger.DirectionCredit,
				metaCircleID:         c.ID,
				metaCycle:            fmt.Sprintf("%d", c.CurrentCycle),
			},
			CreatedAt: now,
		}
		posting.Entries = append(posting.Entries, ledger.Entry{WalletID: recipientWallet.ID, Amount: payout})
		posting.Records = append(posting.Records, payoutTx)

		recipient.HasReceivedCurrentCycle = true
		recipient.TotalReceived = recipient.TotalReceived.Add(payout)
		res.PayoutTriggered = true
		res.PayoutUserID = recipient.UserID
		res.PayoutAmount = payout
	}

	if err := s.store.Post(ctx, posting); err != nil {
		return ContributeResult{}, err
	}

	if res.PayoutTriggered {
		s.closeCycle(&c)
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return ContributeResult{}, err
	}

	if s.emitter != nil {
		s.emitter.TransactionCompleted(ctx, contribution)
		if res.PayoutTriggered {
			s.emitter.TransactionCompleted(ctx, payoutTx)
		}
	}
	s.notifyContribution(ctx, c, contribution, res)

	res.Circle = c
	return res, nil
}

// closeCycle resets paid flags, advances the payout rotation and retires the
// circle once the final cycle has run.
func (s *Service) closeCycle(c *Circle) {
	for i := range c.Members {
		c.Members[i].HasPaidCurrentCycle = false
	}
	c.CurrentPayoutPosition = (c.CurrentPayoutPosition + 1) % len(c.Members)
	c.CurrentCycle++
	if c.CurrentCycle >= c.TotalCycles {
		c.IsActive = false
	}
	// A fresh rotation round clears the received markers.
	if c.CurrentPayoutPosition == 0 {
		for i := range c.Members {
			c.Members[i].HasReceivedCurrentCycle = false
		}
	}
}

// started reports whether any money has entered the current rotation.
func (c *Circle) started() bool {
	if c.CurrentCycle > 0 {
		return true
	}
	for i := range c.Members {
		if c.Members[i].HasPaidCurrentCycle {
			return true
		}
	}
	return false
}

func (s *Service) notifyContribution(ctx context.Context, c Circle, tx ledger.Transaction, res ContributeResult) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Event{
		UserID:    tx.UserID,
		Type:      notification.KindSavings,
		Title:     "Contribution received",
		Message:   fmt.Sprintf("You contributed %s %s to %s", tx.Amount, tx.Currency, c.Name),
		Reference: tx.Reference,
	})
	if res.PayoutTriggered {
		_ = s.notifier.Send(ctx, notification.Event{
			UserID:    res.PayoutUserID,
			Type:      notification.KindSavings,
			Title:     "Savings payout",
			Message:   fmt.Sprintf("You received the %s %s payout from %s", res.PayoutAmount, c.Currency, c.Name),
			Reference: tx.Reference,
		})
	}
}

const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateInviteCode() (string, error) {
	code := make([]byte, 8)
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = inviteAlphabet[n.Int64()]
	}
	return string(code), nil
}
