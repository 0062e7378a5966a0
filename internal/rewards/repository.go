package rewards

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

// Repository persists points balances, accruals and redemption requests.
type Repository interface {
	// Balance returns the user's points account, zero-valued if none exists
	// yet.
	Balance(ctx context.Context, userID string) (Balance, error)
	SaveBalance(ctx context.Context, b Balance) error

	AddReward(ctx context.Context, r Reward) error
	RewardsByUser(ctx context.Context, userID string, limit int) ([]Reward, error)

	AddRedemption(ctx context.Context, r Redemption) error
	RedemptionsByUser(ctx context.Context, userID string) ([]Redemption, error)
}

// PostgresRepository is the PostgreSQL-backed rewards store.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed rewards repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Balance(ctx context.Context, userID string) (Balance, error) {
	row := r.db.QueryRow(ctx, `SELECT user_id, available_balance::text, lifetime_earned::text,
        lifetime_redeemed::text, tier FROM reward_balances WHERE user_id = $1`, userID)

	var (
		b         Balance
		available string
		earned    string
		redeemed  string
		tier      string
	)
	if err := row.Scan(&b.UserID, &available, &earned, &redeemed, &tier); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return zeroBalance(userID), nil
		}
		return Balance{}, err
	}
	var err error
	if b.AvailableBalance, err = decimal.NewFromString(available); err != nil {
		return Balance{}, err
	}
	if b.LifetimeEarned, err = decimal.NewFromString(earned); err != nil {
		return Balance{}, err
	}
	if b.LifetimeRedeemed, err = decimal.NewFromString(redeemed); err != nil {
		return Balance{}, err
	}
	b.Tier = Tier(tier)
	return b, nil
}

func (r *PostgresRepository) SaveBalance(ctx context.Context, b Balance) error {
	_, err := r.db.Exec(ctx, `INSERT INTO reward_balances
        (user_id, available_balance, lifetime_earned, lifetime_redeemed, tier)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id) DO UPDATE SET
            available_balance = EXCLUDED.available_balance,
            lifetime_earned = EXCLUDED.lifetime_earned,
            lifetime_redeemed = EXCLUDED.lifetime_redeemed,
            tier = EXCLUDED.tier`,
		b.UserID, b.AvailableBalance.String(), b.LifetimeEarned.String(),
		b.LifetimeRedeemed.String(), string(b.Tier))
	return err
}

func (r *PostgresRepository) AddReward(ctx context.Context, reward Reward) error {
	id, err := uuid.Parse(reward.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO rewards
        (id, user_id, transaction_reference, type, amount, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		id, reward.UserID, reward.TransactionReference, string(reward.Type),
		reward.Amount.String(), reward.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) RewardsByUser(ctx context.Context, userID string, limit int) ([]Reward, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT id, user_id, transaction_reference, type, amount::text, created_at
        FROM rewards WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reward
	for rows.Next() {
		var (
			reward Reward
			id     uuid.UUID
			txType string
			amount string
		)
		if err := rows.Scan(&id, &reward.UserID, &reward.TransactionReference, &txType, &amount, &reward.CreatedAt); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		reward.ID = id.String()
		reward.Type = ledger.TxType(txType)
		reward.Amount = parsed
		out = append(out, reward)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) AddRedemption(ctx context.Context, redemption Redemption) error {
	id, err := uuid.Parse(redemption.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO reward_redemptions
        (id, user_id, amount, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		id, redemption.UserID, redemption.Amount.String(), string(redemption.Status), redemption.CreatedAt.UTC())
	return err
}

func (r *PostgresRepository) RedemptionsByUser(ctx context.Context, userID string) ([]Redemption, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id, amount::text, status, created_at
        FROM reward_redemptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Redemption
	for rows.Next() {
		var (
			redemption Redemption
			id         uuid.UUID
			amount     string
			status     string
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &redemption.UserID, &amount, &status, &createdAt); err != nil {
			return nil, err
		}
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, err
		}
		redemption.ID = id.String()
		redemption.Amount = parsed
		redemption.Status = RedemptionStatus(status)
		redemption.CreatedAt = createdAt.UTC()
		out = append(out, redemption)
	}
	return out, rows.Err()
}

func zeroBalance(userID string) Balance {
	return Balance{
		UserID:           userID,
		AvailableBalance: decimal.Zero,
		LifetimeEarned:   decimal.Zero,
		LifetimeRedeemed: decimal.Zero,
		Tier:             TierBronze,
	}
}
