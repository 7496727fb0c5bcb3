// Package report derives monthly summaries, spending trends and portfolio
// breakdowns from a user's ledger and positions.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
)

type Config struct {
	// CacheTTL bounds how long a summary is reused. Zero disables caching.
	CacheTTL time.Duration
	Health   HealthPolicy
}

type Engine struct {
	store  storage.Store
	policy HealthPolicy
	cache  *cache
}

func New(store storage.Store, cfg Config) *Engine {
	return &Engine{
		store:  store,
		policy: cfg.Health,
		cache:  newCache(cfg.CacheTTL, time.Now),
	}
}

// Summary totals a window of the ledger. Amounts keep full precision; round
// when displaying.
type Summary struct {
	From              time.Time              `json:"from"`
	To                time.Time              `json:"to"`
	TotalIncome       money.Amount           `json:"total_income"`
	TotalExpense      money.Amount           `json:"total_expense"`
	Net               money.Amount           `json:"net"`
	ByCategory        map[int64]money.Amount `json:"by_category"`
	IncomeByCategory  map[int64]money.Amount `json:"income_by_category"`
	ExpenseByCategory map[int64]money.Amount `json:"expense_by_category"`
	CategoryNames     map[int64]string       `json:"category_names"`
	TransactionCount  int                    `json:"transaction_count"`
	// SavingsRate is net/income in percent with two decimals; zero without income.
	SavingsRate         money.Amount `json:"savings_rate"`
	DailyAverageExpense money.Amount `json:"daily_average_expense"`
	HealthScore         int          `json:"health_score"`
	HealthStatus        string       `json:"health_status"`
}

// CategoryTotal looks a category up by name, for callers that only know
// what the user typed.
func (s Summary) CategoryTotal(name string) (money.Amount, bool) {
	total, found := money.Zero, false
	for id, n := range s.CategoryNames {
		if n == name {
			if v, ok := s.ByCategory[id]; ok {
				total, found = total.Add(v), true
			}
		}
	}
	return total, found
}

func (s Summary) clone() Summary {
	s.ByCategory = maps.Clone(s.ByCategory)
	s.IncomeByCategory = maps.Clone(s.IncomeByCategory)
	s.ExpenseByCategory = maps.Clone(s.ExpenseByCategory)
	s.CategoryNames = maps.Clone(s.CategoryNames)
	return s
}

// Summary reports on w, reusing a cached result while it is fresh.
func (e *Engine) Summary(ctx context.Context, user domain.UserID, w domain.Window) (Summary, error) {
	if !w.From.Before(w.To) {
		return Summary{}, fmt.Errorf("%w: empty window %s..%s", domain.ErrInvalidInput,
			w.From.Format(time.DateOnly), w.To.Format(time.DateOnly))
	}
	s, err := e.cache.summary(user, w, func() (Summary, error) {
		return e.compute(ctx, user, w)
	})
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

// MonthlySummary is Summary over one calendar month.
func (e *Engine) MonthlySummary(ctx context.Context, user domain.UserID, year int, month time.Month) (Summary, error) {
	return e.Summary(ctx, user, domain.MonthWindow(year, month))
}

// Invalidate drops cached summaries whose window contains any of dates, or
// every summary of the user when no dates are given.
func (e *Engine) Invalidate(user domain.UserID, dates ...time.Time) {
	e.cache.invalidate(user, dates...)
}

func (e *Engine) compute(ctx context.Context, user domain.UserID, w domain.Window) (Summary, error) {
	var (
		txs  []domain.Transaction
		cats []domain.Category
	)
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		if cats, err = tx.ListCategories(ctx, ""); err != nil {
			return err
		}
		txs, err = tx.ListTransactions(ctx, storage.TransactionFilter{From: w.From, To: w.To})
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	slog.Debug("summary computed", "user_id", user, "from", w.From.Format(time.DateOnly), "transactions", len(txs))
	return Summarize(w, txs, cats, e.policy), nil
}

// Summarize is the pure part of Summary. Transactions outside w are ignored.
func Summarize(w domain.Window, txs []domain.Transaction, cats []domain.Category, policy HealthPolicy) Summary {
	s := Summary{
		From:              w.From,
		To:                w.To,
		ByCategory:        map[int64]money.Amount{},
		IncomeByCategory:  map[int64]money.Amount{},
		ExpenseByCategory: map[int64]money.Amount{},
		CategoryNames:     map[int64]string{},
	}
	for _, t := range txs {
		if !w.Contains(t.OccurredOn) {
			continue
		}
		s.TransactionCount++
		s.ByCategory[t.CategoryID] = s.ByCategory[t.CategoryID].Add(t.Amount)
		switch t.Kind {
		case domain.Income:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
			s.IncomeByCategory[t.CategoryID] = s.IncomeByCategory[t.CategoryID].Add(t.Amount)
		case domain.Expense:
			s.TotalExpense = s.TotalExpense.Add(t.Amount)
			s.ExpenseByCategory[t.CategoryID] = s.ExpenseByCategory[t.CategoryID].Add(t.Amount)
		}
	}
	for _, c := range cats {
		if _, ok := s.ByCategory[c.ID]; ok {
			s.CategoryNames[c.ID] = c.Name
		}
	}

	s.Net = s.TotalIncome.Sub(s.TotalExpense)
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = s.Net.Mul(money.FromInt(100)).Div(s.TotalIncome, 2)
	}
	if days := w.Days(); days > 0 {
		s.DailyAverageExpense = s.TotalExpense.Div(money.FromInt(int64(days)), money.CurrencyScale)
	}

	top := money.Zero
	for _, v := range s.ExpenseByCategory {
		if v.GreaterThan(top) {
			top = v
		}
	}
	s.HealthScore = policy.Score(s.TotalIncome, s.TotalExpense, top)
	s.HealthStatus = Status(s.HealthScore)
	return s
}
