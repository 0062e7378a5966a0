package rewards

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

// Service accrues points from completed transactions and handles
// redemptions. It observes the ledger through the event stream and never
// mutates wallet balances.
type Service struct {
	repo Repository

	// One accrual or redemption mutates a balance row at a time.
	mu sync.Mutex
}

// NewService builds a rewards service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// HandleTransactionCompleted accrues points for a completed transaction.
// Inbound credit legs earn nothing; the spender already earned on the debit
// leg.
func (s *Service) HandleTransactionCompleted(ctx context.Context, tx ledger.Transaction) error {
	if tx.Status != ledger.StatusCompleted {
		return nil
	}
	if tx.Metadata[ledger.MetaDirection] == ledger.DirectionCredit && tx.Type != ledger.TxFunding {
		return nil
	}
	amount := CalculateRewardAmount(tx.Type, tx.Amount)
	if !amount.IsPositive() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.Balance(ctx, tx.UserID)
	if err != nil {
		return err
	}
	b.AvailableBalance = b.AvailableBalance.Add(amount)
	b.LifetimeEarned = b.LifetimeEarned.Add(amount)
	b.Tier = TierFor(b.LifetimeEarned)

	if err := s.repo.AddReward(ctx, Reward{
		ID:                   uuid.NewString(),
		UserID:               tx.UserID,
		TransactionReference: tx.Reference,
		Type:                 tx.Type,
		Amount:               amount,
		CreatedAt:            time.Now().UTC(),
	}); err != nil {
		return err
	}
	return s.repo.SaveBalance(ctx, b)
}

// Balance returns the user's points account.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	return s.repo.Balance(ctx, userID)
}

// History returns the user's most recent accruals.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Reward, error) {
	return s.repo.RewardsByUser(ctx, userID, limit)
}

// Redeem debits available points and records a pending redemption for an
// external payout channel to fulfill.
func (s *Service) Redeem(ctx context.Context, userID string, amount decimal.Decimal) (Redemption, error) {
	if !amount.IsPositive() {
		return Redemption{}, ErrInsufficientRewards
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return Redemption{}, err
	}
	if b.AvailableBalance.LessThan(amount) {
		return Redemption{}, ErrInsufficientRewards
	}

	b.AvailableBalance = b.AvailableBalance.Sub(amount)
	b.LifetimeRedeemed = b.LifetimeRedeemed.Add(amount)

	redemption := Redemption{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Status:    RedemptionPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.AddRedemption(ctx, redemption); err != nil {
		return Redemption{}, err
	}
	if err := s.repo.SaveBalance(ctx, b); err != nil {
		return Redemption{}, err
	}
	return redemption, nil
}

// Redemptions lists the user's redemption requests.
func (s *Service) Redemptions(ctx context.Context, userID string) ([]Redemption, error) {
	return s.repo.RedemptionsByUser(ctx, userID)
}
