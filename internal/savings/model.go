package savings

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrCircleNotFound indicates no circle matches the lookup.
	ErrCircleNotFound = errors.New("savings circle not found")

	// ErrCircleInactive rejects operations on a closed circle.
	ErrCircleInactive = errors.New("savings circle is not active")

	// ErrNotMember indicates the user does not belong to the circle.
	ErrNotMember = errors.New("not a member of this circle")

	// ErrAlreadyMember rejects a second join by the same user.
	ErrAlreadyMember = errors.New("already a member of this circle")

	// ErrAlreadyPaid rejects a duplicate contribution within one cycle.
	ErrAlreadyPaid = errors.New("already contributed this cycle")

	// ErrCircleStarted blocks joins, leaves and deletion once the rotation
	// is underway.
	ErrCircleStarted = errors.New("savings circle already started")

	// ErrCreatorCannotLeave forces the creator to delete instead of leave.
	ErrCreatorCannotLeave = errors.New("creator cannot leave; delete the circle instead")

	// ErrNotCreator guards creator-only operations.
	ErrNotCreator = errors.New("only the creator may do this")

	// ErrInvalidFrequency rejects unknown contribution cadences.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// Frequency is the contribution cadence of a circle.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether the cadence is supported.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Member is one participant in a circle. Positions form a permutation of
// 0..len(members)-1 and fix the payout rotation order.
type Member struct {
	UserID                  string
	Position                int
	HasPaidCurrentCycle     bool
	HasReceivedCurrentCycle bool
	TotalContributed        decimal.Decimal
	TotalReceived           decimal.Decimal
}

// Circle is a rotating group-savings scheme (Ajo/Esusu): each cycle every
// member contributes the fixed amount and the member at the current payout
// position receives the pooled sum.
type Circle struct {
	ID                    string
	Name                  string
	CreatorID             string
	ContributionAmount    decimal.Decimal
	Currency              string
	Frequency             Frequency
	TotalCycles           int
	CurrentCycle          int
	CurrentPayoutPosition int
	Members               []Member
	IsActive              bool
	InviteCode            string
	CreatedAt             time.Time
}

// MemberByUser returns the member record for the user, if any.
func (c *Circle) MemberByUser(userID string) (*Member, bool) {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// MemberAtPosition returns the member occupying the rotation position.
func (c *Circle) MemberAtPosition(pos int) (*Member, bool) {
	for i := range c.Members {
		if c.Members[i].Position == pos {
			return &c.Members[i], true
		}
	}
	return nil, false
}

// AllPaid reports whether every member has contributed this cycle.
func (c *Circle) AllPaid() bool {
	for i := range c.Members {
		if !c.Members[i].HasPaidCurrentCycle {
			return false
		}
	}
	return len(c.Members) > 0
}

// PayoutAmount is the pooled sum one member receives per cycle.
func (c *Circle) PayoutAmount() decimal.Decimal {
	return c.ContributionAmount.Mul(decimal.NewFromInt(int64(len(c.Members))))
}
