package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
)

// Insight codes.
const (
	InsightPositiveBalance = "positive_balance"
	InsightZeroBalance     = "zero_balance"
	InsightNegativeBalance = "negative_balance"
	InsightHighSavings     = "high_savings"
	InsightGoodSavings     = "good_savings"
	InsightLowSavings      = "low_savings"
	InsightVeryActive      = "very_active"
	InsightActive          = "active"
	InsightInactive        = "inactive"
)

// Recommendation codes.
const (
	RecommendReviewSpending  = "review_spending"
	RecommendCutSuperfluous  = "cut_superfluous"
	RecommendBudget          = "budget"
	RecommendRaiseSavings    = "raise_savings"
	RecommendStartInvesting  = "start_investing"
	RecommendDiversify       = "diversify"
	RecommendTopCategoryHigh = "top_category_high"
)

const (
	maxRecommendations = 5
	lowHealth          = 40
	diversifiedEnough  = 50
	veryActiveCount    = 20
	activeCount        = 10
)

// Percentages.
var (
	savingsTarget    = money.FromInt(10)
	highSavings      = money.FromInt(20)
	topCategoryLimit = money.FromInt(40)
)

// Insight is one quick observation about a month. Value is the amount or
// percentage it refers to, when there is one.
type Insight struct {
	Code  string        `json:"code"`
	Value *money.Amount `json:"value,omitempty"`
}

// Recommendation is one piece of advice. Category and Share are set for
// RecommendTopCategoryHigh.
type Recommendation struct {
	Code     string        `json:"code"`
	Category string        `json:"category,omitempty"`
	Share    *money.Amount `json:"share,omitempty"`
}

type Insights struct {
	Month           string           `json:"month"`
	HealthScore     int              `json:"health_score"`
	HealthStatus    string           `json:"health_status"`
	Insights        []Insight        `json:"insights"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Insights reads the month's summary and the portfolio and turns them into
// quick insights and advice.
func (e *Engine) Insights(ctx context.Context, user domain.UserID, year int, month time.Month) (Insights, error) {
	s, err := e.MonthlySummary(ctx, user, year, month)
	if err != nil {
		return Insights{}, err
	}
	p, err := e.PortfolioSummary(ctx, user, nil)
	if err != nil {
		return Insights{}, fmt.Errorf("insights: %w", err)
	}
	return Insights{
		Month:           s.From.Format("2006-01"),
		HealthScore:     s.HealthScore,
		HealthStatus:    s.HealthStatus,
		Insights:        QuickInsights(s),
		Recommendations: Recommend(s, p),
	}, nil
}

// QuickInsights gives one insight each about the balance, the savings rate
// and how many transactions were recorded.
func QuickInsights(s Summary) []Insight {
	net, rate := s.Net, s.SavingsRate
	out := make([]Insight, 0, 3)

	switch {
	case net.IsPositive():
		out = append(out, Insight{Code: InsightPositiveBalance, Value: &net})
	case net.IsZero():
		out = append(out, Insight{Code: InsightZeroBalance, Value: &net})
	default:
		out = append(out, Insight{Code: InsightNegativeBalance, Value: &net})
	}

	switch {
	case !rate.LessThan(highSavings):
		out = append(out, Insight{Code: InsightHighSavings, Value: &rate})
	case !rate.LessThan(savingsTarget):
		out = append(out, Insight{Code: InsightGoodSavings, Value: &rate})
	default:
		out = append(out, Insight{Code: InsightLowSavings, Value: &rate})
	}

	switch {
	case s.TransactionCount > veryActiveCount:
		out = append(out, Insight{Code: InsightVeryActive})
	case s.TransactionCount > activeCount:
		out = append(out, Insight{Code: InsightActive})
	default:
		out = append(out, Insight{Code: InsightInactive})
	}
	return out
}

// Recommend returns at most five pieces of advice, most urgent first.
func Recommend(s Summary, p PortfolioSummary) []Recommendation {
	out := []Recommendation{}
	if s.HealthScore < lowHealth {
		out = append(out,
			Recommendation{Code: RecommendReviewSpending},
			Recommendation{Code: RecommendCutSuperfluous},
			Recommendation{Code: RecommendBudget},
		)
	}
	if s.SavingsRate.LessThan(savingsTarget) {
		out = append(out, Recommendation{Code: RecommendRaiseSavings})
	}
	if p.AssetCount == 0 {
		out = append(out, Recommendation{Code: RecommendStartInvesting})
	} else if p.DiversificationScore < diversifiedEnough {
		out = append(out, Recommendation{Code: RecommendDiversify})
	}
	if id, share, ok := topExpense(s); ok && share.GreaterThan(topCategoryLimit) {
		out = append(out, Recommendation{Code: RecommendTopCategoryHigh, Category: s.CategoryNames[id], Share: &share})
	}
	return out[:min(len(out), maxRecommendations)]
}

// topExpense returns the biggest expense category and its share of all
// expenses in percent. Ties go to the alphabetically first name.
func topExpense(s Summary) (int64, money.Amount, bool) {
	if len(s.ExpenseByCategory) == 0 || !s.TotalExpense.IsPositive() {
		return 0, money.Zero, false
	}
	ids := make([]int64, 0, len(s.ExpenseByCategory))
	for id := range s.ExpenseByCategory {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b int64) int {
		if c := s.ExpenseByCategory[b].Cmp(s.ExpenseByCategory[a]); c != 0 {
			return c
		}
		return cmp.Compare(s.CategoryNames[a], s.CategoryNames[b])
	})
	top := ids[0]
	share := s.ExpenseByCategory[top].Mul(money.FromInt(100)).Div(s.TotalExpense, 1)
	return top, share, true
}
