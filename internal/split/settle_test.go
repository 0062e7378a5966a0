package split

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	out, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return out
}

// applyDebts replays the settling transfers onto the contribution totals.
func applyDebts(contributed map[string]decimal.Decimal, debts []Debt) map[string]decimal.Decimal {
	adjusted := make(map[string]decimal.Decimal, len(contributed))
	for k, v := range contributed {
		adjusted[k] = v
	}
	for _, debt := range debts {
		adjusted[debt.FromUserID] = adjusted[debt.FromUserID].Add(debt.Amount)
		adjusted[debt.ToUserID] = adjusted[debt.ToUserID].Sub(debt.Amount)
	}
	return adjusted
}

func assertSettled(t *testing.T, members []string, contributed map[string]decimal.Decimal, debts []Debt) {
	t.Helper()
	if len(debts) > len(members)-1 {
		t.Fatalf("expected at most %d edges, got %d", len(members)-1, len(debts))
	}
	total := decimal.Zero
	for _, m := range members {
		total = total.Add(contributed[m])
	}
	fairShare := total.Div(decimal.NewFromInt(int64(len(members))))

	adjusted := applyDebts(contributed, debts)
	for _, m := range members {
		diff := adjusted[m].Sub(fairShare).Abs()
		if diff.GreaterThan(settleEpsilon) {
			t.Fatalf("member %s adjusted to %s, fair share %s", m, adjusted[m], fairShare)
		}
	}
}

func TestCalculateDebtsEqualizesToFairShare(t *testing.T) {
	members := []string{"ada", "bola", "chidi"}
	contributed := map[string]decimal.Decimal{
		"ada":   d("300"),
		"bola":  d("0"),
		"chidi": d("0"),
	}
	debts := CalculateDebts(members, contributed)
	if len(debts) != 2 {
		t.Fatalf("expected 2 edges, got %+v", debts)
	}
	for _, debt := range debts {
		if debt.ToUserID != "ada" || !debt.Amount.Equal(d("100")) {
			t.Fatalf("expected 100 owed to ada, got %+v", debt)
		}
	}
	assertSettled(t, members, contributed, debts)
}

func TestCalculateDebtsUnevenAmounts(t *testing.T) {
	members := []string{"ada", "bola", "chidi", "deji"}
	contributed := map[string]decimal.Decimal{
		"ada":   d("500"),
		"bola":  d("250"),
		"chidi": d("100"),
		"deji":  d("50"),
	}
	debts := CalculateDebts(members, contributed)
	assertSettled(t, members, contributed, debts)
}

func TestCalculateDebtsRoundingRemainder(t *testing.T) {
	// 100 / 3 does not divide evenly; the epsilon absorbs the remainder.
	members := []string{"ada", "bola", "chidi"}
	contributed := map[string]decimal.Decimal{
		"ada":   d("100"),
		"bola":  d("0"),
		"chidi": d("0"),
	}
	debts := CalculateDebts(members, contributed)
	assertSettled(t, members, contributed, debts)
}

func TestCalculateDebtsBalancedGroupHasNoEdges(t *testing.T) {
	members := []string{"ada", "bola"}
	contributed := map[string]decimal.Decimal{
		"ada":  d("150"),
		"bola": d("150"),
	}
	if debts := CalculateDebts(members, contributed); len(debts) != 0 {
		t.Fatalf("expected no edges, got %+v", debts)
	}
}

func TestCalculateDebtsTiesAreDeterministic(t *testing.T) {
	members := []string{"bola", "ada", "chidi", "deji"}
	contributed := map[string]decimal.Decimal{
		"ada":   d("200"),
		"bola":  d("200"),
		"chidi": d("0"),
		"deji":  d("0"),
	}
	first := CalculateDebts(members, contributed)
	for i := 0; i < 10; i++ {
		again := CalculateDebts(members, contributed)
		if len(again) != len(first) {
			t.Fatalf("edge count changed: %+v vs %+v", first, again)
		}
		for j := range first {
			if first[j].FromUserID != again[j].FromUserID ||
				first[j].ToUserID != again[j].ToUserID ||
				!first[j].Amount.Equal(again[j].Amount) {
				t.Fatalf("pairing changed: %+v vs %+v", first, again)
			}
		}
	}
	assertSettled(t, members, contributed, first)
}

func TestCalculateDebtsMemberWithoutContributions(t *testing.T) {
	// A member absent from the totals map owes a full fair share.
	members := []string{"ada", "bola", "chidi"}
	contributed := map[string]decimal.Decimal{
		"ada":  d("90"),
		"bola": d("90"),
	}
	debts := CalculateDebts(members, contributed)
	if len(debts) != 2 {
		t.Fatalf("expected 2 edges, got %+v", debts)
	}
	for _, debt := range debts {
		if debt.FromUserID != "chidi" {
			t.Fatalf("expected chidi to owe, got %+v", debt)
		}
	}
	assertSettled(t, members, contributed, debts)
}
