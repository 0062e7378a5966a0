package rewards

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nairalink/nairalink/internal/ledger"
)

var (
	// ErrInsufficientRewards rejects redemptions exceeding the available
	// balance.
	ErrInsufficientRewards = errors.New("insufficient rewards balance")

	// ErrRedemptionNotFound indicates no redemption matches the lookup.
	ErrRedemptionNotFound = errors.New("redemption not found")
)

// Tier is a loyalty level derived from lifetime earnings.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tier thresholds on lifetime earned points.
var (
	silverThreshold   = decimal.NewFromInt(1_000)
	goldThreshold     = decimal.NewFromInt(5_000)
	platinumThreshold = decimal.NewFromInt(20_000)
)

// TierFor maps lifetime earnings to a tier.
func TierFor(lifetimeEarned decimal.Decimal) Tier {
	switch {
	case lifetimeEarned.GreaterThanOrEqual(platinumThreshold):
		return TierPlatinum
	case lifetimeEarned.GreaterThanOrEqual(goldThreshold):
		return TierGold
	case lifetimeEarned.GreaterThanOrEqual(silverThreshold):
		return TierSilver
	default:
		return TierBronze
	}
}

// Accrual rates per transaction type, as a fraction of the amount.
var rateTable = map[ledger.TxType]decimal.Decimal{
	ledger.TxFunding:             decimal.NewFromFloat(0.0025),
	ledger.TxTransfer:            decimal.NewFromFloat(0.005),
	ledger.TxBillPayment:         decimal.NewFromFloat(0.01),
	ledger.TxSavingsContribution: decimal.NewFromFloat(0.005),
}

// ReferralBonus is the flat reward credited per successful referral.
var ReferralBonus = decimal.NewFromInt(100)

// CalculateRewardAmount returns the points earned for a transaction of the
// given type and amount, rounded to 2 decimals. Unrewarded types earn zero.
func CalculateRewardAmount(txType ledger.TxType, amount decimal.Decimal) decimal.Decimal {
	rate, ok := rateTable[txType]
	if !ok {
		return decimal.Zero
	}
	return amount.Mul(rate).Round(2)
}

// Balance is a user's points account. Tier is a pure function of
// LifetimeEarned and is recomputed on every accrual.
type Balance struct {
	UserID           string
	AvailableBalance decimal.Decimal
	LifetimeEarned   decimal.Decimal
	LifetimeRedeemed decimal.Decimal
	Tier             Tier
}

// Reward is one accrual, tied to the transaction that earned it.
type Reward struct {
	ID                   string
	UserID               string
	TransactionReference string
	Type                 ledger.TxType
	Amount               decimal.Decimal
	CreatedAt            time.Time
}

// RedemptionStatus tracks a redemption through external fulfillment.
type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionRejected  RedemptionStatus = "rejected"
)

// Redemption is a request to cash out points, fulfilled by an external
// payout channel.
type Redemption struct {
	ID        string
	UserID    string
	Amount    decimal.Decimal
	Status    RedemptionStatus
	CreatedAt time.Time
}
