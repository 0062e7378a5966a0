package split

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Debt is one settling transfer: From owes To the amount.
type Debt struct {
	FromUserID string
	ToUserID   string
	Amount     decimal.Decimal
}

// settleEpsilon absorbs currency-rounding remainders: a side whose remaining
// balance drops below one cent is considered settled.
var settleEpsilon = decimal.NewFromFloat(0.01)

type netPosition struct {
	userID string
	amount decimal.Decimal
}

// CalculateDebts nets each member's actual contribution against the fair
// share (total divided evenly across members) and returns the settling
// transfers. Largest debtor is matched against largest creditor first, which
// yields at most len(members)-1 edges. Ties sort by member ID so the result
// is deterministic, though any pairing with the same net amounts would
// balance equally well.
func CalculateDebts(members []string, contributed map[string]decimal.Decimal) []Debt {
	if len(members) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, m := range members {
		total = total.Add(contributed[m])
	}
	fairShare := total.Div(decimal.NewFromInt(int64(len(members))))

	var debtors, creditors []netPosition
	for _, m := range members {
		net := contributed[m].Sub(fairShare).Round(2)
		switch {
		case net.GreaterThan(settleEpsilon):
			creditors = append(creditors, netPosition{userID: m, amount: net})
		case net.Neg().GreaterThan(settleEpsilon):
			debtors = append(debtors, netPosition{userID: m, amount: net.Neg()})
		}
	}
	sortByMagnitude(debtors)
	sortByMagnitude(creditors)

	var debts []Debt
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := decimal.Min(debtors[i].amount, creditors[j].amount).Round(2)
		if amount.GreaterThan(decimal.Zero) {
			debts = append(debts, Debt{
				FromUserID: debtors[i].userID,
				ToUserID:   creditors[j].userID,
				Amount:     amount,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(amount)
		creditors[j].amount = creditors[j].amount.Sub(amount)
		if debtors[i].amount.LessThan(settleEpsilon) {
			i++
		}
		if creditors[j].amount.LessThan(settleEpsilon) {
			j++
		}
	}
	return debts
}

func sortByMagnitude(positions []netPosition) {
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].amount.Equal(positions[j].amount) {
			return positions[i].userID < positions[j].userID
		}
		return positions[i].amount.GreaterThan(positions[j].amount)
	})
}
