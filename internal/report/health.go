package report

import (
	"github.com/shopspring/decimal"

	"finance-tracker/internal/money"
)

// HealthPolicy weighs the savings rate against how concentrated spending is in
// a single category. Weights are normalized, so only their ratio matters.
type HealthPolicy struct {
	SavingsWeight       float64
	ConcentrationWeight float64
}

func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{SavingsWeight: 0.8, ConcentrationWeight: 0.2}
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Score maps a window's totals to 0..100. For a fixed spending mix it never
// decreases as the savings rate grows.
//
//	score = round(100 × (ws × clamp(net/income, 0, 1) + wc × (1 − top/expense)))
//
// With no income the score is 0 if anything was spent, 50 for an empty window.
func (p HealthPolicy) Score(income, expense, topCategory money.Amount) int {
	if !income.IsPositive() {
		if expense.IsPositive() {
			return 0
		}
		return 50
	}

	ws, wc := p.weights()
	rate := clamp01(income.Sub(expense).Decimal().DivRound(income.Decimal(), 8))
	spread := one
	if expense.IsPositive() {
		spread = one.Sub(clamp01(topCategory.Decimal().DivRound(expense.Decimal(), 8)))
	}
	score := ws.Mul(rate).Add(wc.Mul(spread)).Mul(hundred).Round(0).IntPart()
	return int(max(0, min(100, score)))
}

func (p HealthPolicy) weights() (decimal.Decimal, decimal.Decimal) {
	s, c := p.SavingsWeight, p.ConcentrationWeight
	if s < 0 || c < 0 || s+c <= 0 {
		d := DefaultHealthPolicy()
		s, c = d.SavingsWeight, d.ConcentrationWeight
	}
	ws, wc := decimal.NewFromFloat(s), decimal.NewFromFloat(c)
	total := ws.Add(wc)
	return ws.DivRound(total, 8), wc.DivRound(total, 8)
}

func clamp01(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(one) {
		return one
	}
	return d
}

// Status labels a score.
func Status(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Needs improvement"
	}
}
