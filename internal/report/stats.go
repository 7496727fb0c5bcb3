package report

import (
	"context"
	"fmt"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
)

// UserStats describes everything a user has recorded so far.
type UserStats struct {
	TransactionCount int          `json:"transaction_count"`
	IncomeCount      int          `json:"income_count"`
	ExpenseCount     int          `json:"expense_count"`
	TotalIncome      money.Amount `json:"total_income"`
	TotalExpense     money.Amount `json:"total_expense"`
	OpenPositions    int          `json:"open_positions"`
	TotalInvested    money.Amount `json:"total_invested"`
	CustomCategories int          `json:"custom_categories"`
	FirstTransaction *time.Time   `json:"first_transaction,omitempty"`
	LastTransaction  *time.Time   `json:"last_transaction,omitempty"`
	// ActiveDays counts distinct dates with at least one transaction.
	ActiveDays       int          `json:"active_days"`
}

func (e *Engine) UserStats(ctx context.Context, user domain.UserID) (UserStats, error) {
	var (
		txs       []domain.Transaction
		positions []domain.Position
		cats      []domain.Category
	)
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		if txs, err = tx.ListTransactions(ctx, storage.TransactionFilter{}); err != nil {
			return err
		}
		if positions, err = tx.ListPositions(ctx); err != nil {
			return err
		}
		cats, err = tx.ListCategories(ctx, "")
		return err
	})
	if err != nil {
		return UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return Stats(txs, positions, cats), nil
}

// Stats is the pure part of UserStats.
func Stats(txs []domain.Transaction, positions []domain.Position, cats []domain.Category) UserStats {
	var s UserStats
	days := map[time.Time]bool{}
	for _, t := range txs {
		s.TransactionCount++
		switch t.Kind {
		case domain.Income:
			s.IncomeCount++
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case domain.Expense:
			s.ExpenseCount++
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
		}
		on := domain.Date(t.OccurredOn)
		days[on] = true
		if s.FirstTransaction == nil || on.Before(*s.FirstTransaction) {
			s.FirstTransaction = &on
		}
		if s.LastTransaction == nil || on.After(*s.LastTransaction) {
			s.LastTransaction = &on
		}
	}
	s.ActiveDays = len(days)

	for _, p := range positions {
		if p.Open() {
			s.OpenPositions++
			s.TotalInvested = s.TotalInvested.Add(p.Quantity.Mul(p.AverageCost))
		}
	}
	for _, c := range cats {
		if !c.IsDefault {
			s.CustomCategories++
		}
	}
	return s
}
