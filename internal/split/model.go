package split

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrGroupNotFound indicates no group matches the lookup.
	ErrGroupNotFound = errors.New("split group not found")

	// ErrPaymentNotFound indicates no payment matches the lookup.
	ErrPaymentNotFound = errors.New("split payment not found")

	// ErrNotMember indicates the user does not belong to the group.
	ErrNotMember = errors.New("not a member of this group")

	// ErrAlreadyMember rejects a second join by the same user.
	ErrAlreadyMember = errors.New("already a member of this group")

	// ErrAlreadyApproved rejects a second approval vote from one member.
	ErrAlreadyApproved = errors.New("already approved this payment")

	// ErrPaymentNotPending guards the exactly-once pool decrement: a payment
	// that reached a terminal status cannot be approved or settled again.
	ErrPaymentNotPending = errors.New("payment is not pending")

	// ErrPoolInsufficient rejects payments exceeding the pooled balance.
	ErrPoolInsufficient = errors.New("insufficient pool balance")

	// ErrPoolNotEmpty blocks deleting a group that still holds funds.
	ErrPoolNotEmpty = errors.New("group pool is not empty")

	// ErrCreatorCannotLeave forces the creator to delete instead of leave.
	ErrCreatorCannotLeave = errors.New("creator cannot leave; delete the group instead")

	// ErrNotCreator guards creator-only operations.
	ErrNotCreator = errors.New("only the creator may do this")

	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Group is a shared pool funded by member contributions and spent through
// payments, optionally gated on member approval.
type Group struct {
	ID         string
	Name       string
	CreatorID  string
	Members    []string
	Balance    decimal.Decimal
	Currency   string
	InviteCode string
	CreatedAt  time.Time
}

// HasMember reports whether the user belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Contribution is one member's payment into the pool.
type Contribution struct {
	ID            string
	GroupID       string
	ContributorID string
	Amount        decimal.Decimal
	Reference     string
	CreatedAt     time.Time
}

// PaymentStatus is the lifecycle state of a pool payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is a spend out of the pool. It completes once approvals reach
// MinApprovals; the pool balance is decremented exactly once on that
// transition.
type Payment struct {
	ID           string
	GroupID      string
	InitiatorID  string
	RecipientID  string
	Amount       decimal.Decimal
	Description  string
	Status       PaymentStatus
	Approvals    []string
	MinApprovals int
	Reference    string
	CreatedAt    time.Time
}

// ApprovedBy reports whether the user already voted on the payment.
func (p *Payment) ApprovedBy(userID string) bool {
	for _, a := range p.Approvals {
		if a == userID {
			return true
		}
	}
	return false
}
