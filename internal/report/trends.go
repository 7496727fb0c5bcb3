package report

import (
	"context"
	"fmt"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
)

type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
)

const (
	minTrendMonths = 2
	maxTrendMonths = 24
)

type MonthTotals struct {
	Month   string       `json:"month"` // YYYY-MM
	Income  money.Amount `json:"income"`
	Expense money.Amount `json:"expense"`
	Net     money.Amount `json:"net"`
}

// Trend compares average spending of the later half of the months with the
// earlier half. A change beyond ±10% is a trend.
type Trend struct {
	Months []MonthTotals `json:"months"`
	// ChangePct is nil when the earlier half has no spending to compare with.
	ChangePct *money.Amount `json:"change_pct,omitempty"`
	Direction Direction     `json:"direction"`
}

var trendThreshold = money.FromInt(10)

// Trends covers the given number of calendar months ending with the month of now.
func (e *Engine) Trends(ctx context.Context, user domain.UserID, months int, now time.Time) (Trend, error) {
	if months < minTrendMonths || months > maxTrendMonths {
		return Trend{}, fmt.Errorf("%w: months must be between %d and %d", domain.ErrInvalidInput, minTrendMonths, maxTrendMonths)
	}
	last := domain.MonthWindow(now.Year(), now.Month())
	w := domain.Window{From: last.From.AddDate(0, -(months - 1), 0), To: last.To}

	var txs []domain.Transaction
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		txs, err = tx.ListTransactions(ctx, storage.TransactionFilter{From: w.From, To: w.To})
		return err
	})
	if err != nil {
		return Trend{}, fmt.Errorf("trends: %w", err)
	}
	return Trends(w.From, months, txs), nil
}

// Trends is the pure part of Engine.Trends, bucketing txs into months
// starting at from.
func Trends(from time.Time, months int, txs []domain.Transaction) Trend {
	t := Trend{Months: make([]MonthTotals, months), Direction: Stable}
	for i := range t.Months {
		t.Months[i].Month = from.AddDate(0, i, 0).Format("2006-01")
	}
	for _, tx := range txs {
		i := monthsBetween(from, tx.OccurredOn)
		if i < 0 || i >= months {
			continue
		}
		m := &t.Months[i]
		switch tx.Kind {
		case domain.Income:
			m.Income = m.Income.Add(tx.Amount)
		case domain.Expense:
			m.Expense = m.Expense.Add(tx.Amount)
		}
	}
	for i := range t.Months {
		t.Months[i].Net = t.Months[i].Income.Sub(t.Months[i].Expense)
	}

	half := months / 2
	earlier := averageExpense(t.Months[:half])
	later := averageExpense(t.Months[months-half:])
	if !earlier.IsPositive() {
		if later.IsPositive() {
			t.Direction = Increasing
		}
		return t
	}
	change := later.Sub(earlier).Mul(money.FromInt(100)).Div(earlier, 2)
	t.ChangePct = &change
	switch {
	case change.GreaterThan(trendThreshold):
		t.Direction = Increasing
	case change.LessThan(trendThreshold.Neg()):
		t.Direction = Decreasing
	}
	return t
}

func averageExpense(ms []MonthTotals) money.Amount {
	total := money.Zero
	for _, m := range ms {
		total = total.Add(m.Expense)
	}
	return total.Div(money.FromInt(int64(len(ms))), 8)
}

func monthsBetween(from, t time.Time) int {
	return (t.Year()-from.Year())*12 + int(t.Month()) - int(from.Month())
}
