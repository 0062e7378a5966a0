package split

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/directory"
	"github.com/nairalink/nairalink/internal/events"
	"github.com/nairalink/nairalink/internal/ledger"
	"github.com/nairalink/nairalink/internal/notification"
)

// Metadata keys written on split transactions.
const (
	metaGroupID   = "group_id"
	metaPaymentID = "payment_id"
)

// Service manages split-payment groups: member contributions pool into a
// shared balance which is spent through approved payments, and the debt view
// nets each member's position against the fair share.
type Service struct {
	repo      Repository
	store     ledger.Store
	directory directory.Directory
	emitter   events.Emitter
	notifier  notification.Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService builds a split-payment service.
func NewService(repo Repository, store ledger.Store, dir directory.Directory,
	emitter events.Emitter, notifier notification.Notifier) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		directory: dir,
		emitter:   emitter,
		notifier:  notifier,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lock serializes mutations per group so pool check-then-decrement sequences
// cannot interleave.
func (s *Service) lock(groupID string) func() {
	s.mu.Lock()
	l, ok := s.locks[groupID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[groupID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateGroup opens a pool with the caller as creator and sole member.
func (s *Service) CreateGroup(ctx context.Context, name, creatorID string) (Group, error) {
	if _, err := s.store.WalletByUser(ctx, creatorID); err != nil {
		return Group{}, err
	}
	code, err := generateInviteCode()
	if err != nil {
		return Group{}, err
	}
	g := Group{
		ID:         uuid.NewString(),
		Name:       name,
		CreatorID:  creatorID,
		Members:    []string{creatorID},
		Balance:    decimal.Zero,
		Currency:   "NGN",
		InviteCode: code,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return Group{}, err
	}
	return g, nil
}

// Get returns one group for a member.
func (s *Service) Get(ctx context.Context, groupID, userID string) (Group, error) {
	g, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	if !g.HasMember(userID) {
		return Group{}, ErrNotMember
	}
	return g, nil
}

// ByUser lists the groups the user belongs to.
func (s *Service) ByUser(ctx context.Context, userID string) ([]Group, error) {
	return s.repo.GroupsByUser(ctx, userID)
}

// Join adds the user to the group behind the invite code.
func (s *Service) Join(ctx context.Context, inviteCode, userID string) (Group, error) {
	g, err := s.repo.GroupByInviteCode(ctx, inviteCode)
	if err != nil {
		return Group{}, err
	}
	unlock := s.lock(g.ID)
	defer unlock()

	g, err = s.repo.Group(ctx, g.ID)
	if err != nil {
		return Group{}, err
	}
	if g.HasMember(userID) {
		return Group{}, ErrAlreadyMember
	}
	if _, err := s.store.WalletByUser(ctx, userID); err != nil {
		return Group{}, err
	}
	g.Members = append(g.Members, userID)
	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		return Group{}, err
	}
	return g, nil
}

// Leave removes a non-creator member.
func (s *Service) Leave(ctx context.Context, groupID, userID string) error {
	unlock := s.lock(groupID)
	defer unlock()

	g, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if g.CreatorID == userID {
		return ErrCreatorCannotLeave
	}
	if !g.HasMember(userID) {
		return ErrNotMember
	}
	members := make([]string, 0, len(g.Members)-1)
	for _, m := range g.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	g.Members = members
	return s.repo.UpdateGroup(ctx, g)
}

// Delete removes a group. Creator only, and only once the pool is empty so
// no pooled funds are stranded.
func (s *Service) Delete(ctx context.Context, groupID, userID string) error {
	unlock := s.lock(groupID)
	defer unlock()

	g, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return err
	}
	if g.CreatorID != userID {
		return ErrNotCreator
	}
	if !g.Balance.IsZero() {
		return ErrPoolNotEmpty
	}
	return s.repo.DeleteGroup(ctx, groupID)
}

// Contribute moves funds from the member's wallet into the pool. No approval
// is required to pay in.
func (s *Service) Contribute(ctx context.Context, groupID, userID string, amount decimal.Decimal) (Contribution, error) {
	if !amount.IsPositive() {
		return Contribution{}, ErrInvalidAmount
	}
	unlock := s.lock(groupID)
	defer unlock()

	g, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return Contribution{}, err
	}
	if !g.HasMember(userID) {
		return Contribution{}, ErrNotMember
	}
	wallet, err := s.store.WalletByUser(ctx, userID)
	if err != nil {
		return Contribution{}, err
	}

	reference := uuid.NewString()
	tx := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		WalletID:    wallet.ID,
		Type:        ledger.TxSplitContribution,
		Amount:      amount,
		Currency:    g.Currency,
		Reference:   reference,
		Status:      ledger.StatusCompleted,
		Description: fmt.Sprintf("Contribution to %s", g.Name),
		Metadata: map[string]string{
			ledger.MetaDirection: ledger.DirectionDebit,
			metaGroupID:          g.ID,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Post(ctx, ledger.Posting{
		Entries: []ledger.Entry{{WalletID: wallet.ID, Amount: amount.Neg()}},
		Records: []ledger.Transaction{tx},
	}); err != nil {
		return Contribution{}, err
	}

	g.Balance = g.Balance.Add(amount)
	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		return Contribution{}, err
	}
	c := Contribution{
		ID:            uuid.NewString(),
		GroupID:       g.ID,
		ContributorID: userID,
		Amount:        amount,
		Reference:     reference,
		CreatedAt:     tx.CreatedAt,
	}
	if err := s.repo.AddContribution(ctx, c); err != nil {
		return Contribution{}, err
	}

	if s.emitter != nil {
		s.emitter.TransactionCompleted(ctx, tx)
	}
	return c, nil
}

// PayInput describes a spend out of the pool.
type PayInput struct {
	GroupID          string
	InitiatorID      string
	RecipientEmail   string
	Amount           decimal.Decimal
	Description      string
	RequiresApproval bool
	MinApprovals     int
}

// Pay creates a pool payment. With approval disabled, or a threshold the
// initiator's own vote already meets, the payment settles immediately;
// otherwise it stays pending until Approve pushes the vote count to the
// threshold.
func (s *Service) Pay(ctx context.Context, input PayInput) (Payment, error) {
	if !input.Amount.IsPositive() {
		return Payment{}, ErrInvalidAmount
	}
	unlock := s.lock(input.GroupID)
	defer unlock()

	g, err := s.repo.Group(ctx, input.GroupID)
	if err != nil {
		return Payment{}, err
	}
	if !g.HasMember(input.InitiatorID) {
		return Payment{}, ErrNotMember
	}
	if g.Balance.LessThan(input.Amount) {
		return Payment{}, ErrPoolInsufficient
	}
	recipient, err := s.directory.FindByEmail(ctx, input.RecipientEmail)
	if err != nil {
		return Payment{}, err
	}

	p := Payment{
		ID:           uuid.NewString(),
		GroupID:      g.ID,
		InitiatorID:  input.InitiatorID,
		RecipientID:  recipient.ID,
		Amount:       input.Amount,
		Description:  input.Description,
		Status:       PaymentPending,
		Approvals:    []string{input.InitiatorID},
		MinApprovals: input.MinApprovals,
		Reference:    uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, p); err != nil {
		return Payment{}, err
	}

	if !input.RequiresApproval || input.MinApprovals <= 1 {
		if err := s.settle(ctx, &g, &p); err != nil {
			return Payment{}, err
		}
	}
	return p, nil
}

// Approve records one member's vote on a pending payment. The vote that
// reaches the threshold settles the payment.
func (s *Service) Approve(ctx context.Context, paymentID, userID string) (Payment, error) {
	p, err := s.repo.Payment(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	unlock := s.lock(p.GroupID)
	defer unlock()

	p, err = s.repo.Payment(ctx, paymentID)
	if err != nil {
		return Payment{}, err
	}
	if p.Status != PaymentPending {
		return Payment{}, ErrPaymentNotPending
	}
	g, err := s.repo.Group(ctx, p.GroupID)
	if err != nil {
		return Payment{}, err
	}
	if !g.HasMember(userID) {
		return Payment{}, ErrNotMember
	}
	if p.ApprovedBy(userID) {
		return Payment{}, ErrAlreadyApproved
	}

	p.Approvals = append(p.Approvals, userID)
	if len(p.Approvals) >= p.MinApprovals {
		if err := s.settle(ctx, &g, &p); err != nil {
			return Payment{}, err
		}
		return p, nil
	}
	if err := s.repo.UpdatePayment(ctx, p); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// Payments lists a group's payments for a member.
func (s *Service) Payments(ctx context.Context, groupID, userID string) ([]Payment, error) {
	g, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(userID) {
		return nil, ErrNotMember
	}
	return s.repo.PaymentsByGroup(ctx, groupID)
}

// Debts nets each member's contributions against the fair share and returns
// the settling transfers.
func (s *Service) Debts(ctx context.Context, groupID, userID string) ([]Debt, error) {
	g, err := s.repo.Group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(userID) {
		return nil, ErrNotMember
	}
	contributions, err := s.repo.ContributionsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]decimal.Decimal, len(g.Members))
	for _, c := range contributions {
		totals[c.ContributorID] = totals[c.ContributorID].Add(c.Amount)
	}
	return CalculateDebts(g.Members, totals), nil
}

// settle decrements the pool and credits the recipient wallet. The caller
// holds the group lock; the repository's pending guard backstops the
// exactly-once decrement.
func (s *Service) settle(ctx context.Context, g *Group, p *Payment) error {
	if g.Balance.LessThan(p.Amount) {
		p.Status = PaymentFailed
		if err := s.repo.UpdatePayment(ctx, *p); err != nil {
			return err
		}
		return ErrPoolInsufficient
	}
	wallet, err := s.store.WalletByUser(ctx, p.RecipientID)
	if err != nil {
		p.Status = PaymentFailed
		if updateErr := s.repo.UpdatePayment(ctx, *p); updateErr != nil {
			return updateErr
		}
		return err
	}

	tx := ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      p.RecipientID,
		WalletID:    wallet.ID,
		Type:        ledger.TxSplitPayment,
		Amount:      p.Amount,
		Currency:    g.Currency,
		Reference:   p.Reference,
		Status:      ledger.StatusCompleted,
		Description: p.Description,
		Metadata: map[string]string{
			ledger.MetaDirection: ledger.DirectionCredit,
			metaGroupID:          g.ID,
			metaPaymentID:        p.ID,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Post(ctx, ledger.Posting{
		Entries: []ledger.Entry{{WalletID: wallet.ID, Amount: p.Amount}},
		Records: []ledger.Transaction{tx},
	}); err != nil {
		return err
	}

	p.Status = PaymentCompleted
	if err := s.repo.UpdatePayment(ctx, *p); err != nil {
		return err
	}
	g.Balance = g.Balance.Sub(p.Amount)
	if err := s.repo.UpdateGroup(ctx, *g); err != nil {
		return err
	}

	if s.emitter != nil {
		s.emitter.TransactionCompleted(ctx, tx)
	}
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Event{
			UserID:    p.RecipientID,
			Type:      notification.KindSplitPayment,
			Title:     "Pool payment received",
			Message:   fmt.Sprintf("You received %s %s from %s", p.Amount, g.Currency, g.Name),
			Reference: p.Reference,
		})
	}
	return nil
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
