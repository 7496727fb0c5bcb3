package telegram

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/position"
	"finance-tracker/internal/report"
	"finance-tracker/internal/session"
)

// esc escapes text typed by the user so it cannot open or close an entity.
// Legacy Markdown has no escapes inside entities, so escaped text must stay
// outside of _ and * spans.
func esc(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s) }

func prompt(s *session.Session) string {
	switch s.Step {
	case session.StepAmount:
		if s.Flow == session.RecordIncome {
			return "💵 How much did you receive?"
		}
		return "💸 How much did you spend?"
	case session.StepCategory:
		var b strings.Builder
		b.WriteString("📂 Pick a category (number or name):\n")
		for i, c := range s.Categories {
			fmt.Fprintf(&b, "%d. %s %s\n", i+1, esc(c.Icon), esc(c.Name))
		}
		return strings.TrimRight(b.String(), "\n")
	case session.StepDescription:
		return "📝 Description? Send - to use the category name."
	case session.StepPayment:
		return "💳 Payment method?\n" + numbered(session.PaymentMethods)
	case session.StepDate:
		return "📅 When? today, yesterday or DD/MM/YYYY"
	case session.StepTicker:
		return "🏷 Ticker? (e.g. PETR4, BTC)"
	case session.StepAssetType:
		names := make([]string, len(session.AssetTypes))
		for i, t := range session.AssetTypes {
			names[i] = string(t)
		}
		return "📁 Asset type?\n" + numbered(names)
	case session.StepQuantity:
		return "🔢 Quantity?"
	case session.StepPrice:
		return "💲 Unit price?"
	}
	return ""
}

func numbered(options []string) string {
	lines := make([]string, len(options))
	for i, o := range options {
		lines[i] = fmt.Sprintf("%d. %s", i+1, o)
	}
	return strings.Join(lines, "\n")
}

func renderRecorded(t domain.Transaction, category, currency string) string {
	icon := "💸"
	if t.Kind == domain.Income {
		icon = "💵"
	}
	return fmt.Sprintf("✅ %s %s recorded: %s in %s on %s\n📝 %s",
		icon, t.Kind, money.Format(t.Amount, currency), esc(category), t.OccurredOn.Format("02/01/2006"), esc(t.Description))
}

func renderBuy(p domain.Position, currency string) string {
	return fmt.Sprintf("✅ Bought *%s*\nQuantity: %s\nAverage cost: %s",
		p.Ticker, p.Quantity, money.Format(p.AverageCost, currency))
}

func renderSell(res position.SellResult, currency string) string {
	p := res.Position
	icon := "📈"
	if res.RealizedGain.IsNegative() {
		icon = "📉"
	}
	text := fmt.Sprintf("✅ Sold *%s*\n%s Realized gain: %s\nRemaining: %s",
		p.Ticker, icon, money.Format(res.RealizedGain, currency), p.Quantity)
	if !p.Open() {
		text += " (position closed)"
	}
	return text
}

func renderSummary(s report.Summary, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%s*\n\n", s.From.Format("January 2006"))
	fmt.Fprintf(&b, "Income: %s\n", money.Format(s.TotalIncome, currency))
	fmt.Fprintf(&b, "Expenses: %s\n", money.Format(s.TotalExpense, currency))
	fmt.Fprintf(&b, "Net: %s\n", money.Format(s.Net, currency))
	if s.TotalIncome.IsPositive() {
		fmt.Fprintf(&b, "Savings rate: %s%%\n", s.SavingsRate.StringFixed(2))
	}
	fmt.Fprintf(&b, "Daily average: %s\n", money.Format(s.DailyAverageExpense, currency))
	fmt.Fprintf(&b, "Health: %d/100 (%s)\n", s.HealthScore, s.HealthStatus)

	if len(s.ExpenseByCategory) > 0 {
		b.WriteString("\n*Expenses by category*\n")
		writeCategories(&b, s.ExpenseByCategory, s.CategoryNames, currency)
	}
	if len(s.IncomeByCategory) > 0 {
		b.WriteString("\n*Income by category*\n")
		writeCategories(&b, s.IncomeByCategory, s.CategoryNames, currency)
	}
	if s.TransactionCount == 0 {
		b.WriteString("\n📭 No transactions in this month.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeCategories(b *strings.Builder, totals map[int64]money.Amount, names map[int64]string, currency string) {
	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(x, y int64) int {
		if c := totals[y].Cmp(totals[x]); c != 0 {
			return c
		}
		return cmp.Compare(names[x], names[y])
	})
	for _, id := range ids {
		fmt.Fprintf(b, "- %s: %s\n", esc(names[id]), money.Format(totals[id], currency))
	}
}

func renderPortfolio(s report.PortfolioSummary, currency string) string {
	if s.AssetCount == 0 {
		return "📭 No open positions. Use /buy to add one."
	}
	var b strings.Builder
	b.WriteString("💼 *Portfolio*\n\n")
	for _, v := range s.Positions {
		fmt.Fprintf(&b, "*%s* (%s) %s × %s", v.Ticker, v.AssetType, v.Quantity, money.Format(v.AverageCost, currency))
		if v.Priced() {
			fmt.Fprintf(&b, " → %s (%s)", money.Format(*v.MarketValue, currency), signed(*v.UnrealizedGain, currency))
		}
		fmt.Fprintf(&b, " %s%%\n", s.Allocation[v.Ticker].StringFixed(2))
	}
	fmt.Fprintf(&b, "\nInvested: %s\n", money.Format(s.TotalInvested, currency))
	fmt.Fprintf(&b, "Market value: %s\n", money.Format(s.TotalMarketValue, currency))
	fmt.Fprintf(&b, "Unrealized gain: %s\n", signed(s.TotalUnrealizedGain, currency))
	fmt.Fprintf(&b, "Diversification: %d/100\n", s.DiversificationScore)
	if len(s.Unpriced) > 0 {
		fmt.Fprintf(&b, "\n_No price for %s, shown at cost._", strings.Join(s.Unpriced, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func signed(a money.Amount, currency string) string {
	if a.IsPositive() {
		return "+" + money.Format(a, currency)
	}
	return money.Format(a, currency)
}

func renderCategories(cats []domain.Category) string {
	var b strings.Builder
	for _, kind := range []domain.Kind{domain.Expense, domain.Income} {
		fmt.Fprintf(&b, "*%s*\n", titles[kind])
		for _, c := range cats {
			if c.Kind == kind {
				fmt.Fprintf(&b, "%s %s\n", esc(c.Icon), esc(c.Name))
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var titles = map[domain.Kind]string{domain.Expense: "Expense categories", domain.Income: "Income categories"}

func renderInsights(in report.Insights, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💡 *Insights for %s*\n", in.Month)
	fmt.Fprintf(&b, "Health: %d/100 (%s)\n\n", in.HealthScore, in.HealthStatus)
	for _, i := range in.Insights {
		b.WriteString(insightText(i, currency) + "\n")
	}
	if len(in.Recommendations) > 0 {
		b.WriteString("\n*Recommendations*\n")
		for _, r := range in.Recommendations {
			b.WriteString(recommendationText(r) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func insightText(i report.Insight, currency string) string {
	var v money.Amount
	if i.Value != nil {
		v = *i.Value
	}
	switch i.Code {
	case report.InsightPositiveBalance:
		return "✅ Positive balance: " + money.Format(v, currency)
	case report.InsightZeroBalance:
		return "➖ Income and expenses are even"
	case report.InsightNegativeBalance:
		return "⚠️ Negative balance: " + money.Format(v, currency)
	case report.InsightHighSavings:
		return fmt.Sprintf("🎯 Excellent savings rate: %s%%", v.StringFixed(1))
	case report.InsightGoodSavings:
		return fmt.Sprintf("👍 Good savings rate: %s%%", v.StringFixed(1))
	case report.InsightLowSavings:
		return fmt.Sprintf("📈 Room to save more (now %s%%)", v.StringFixed(1))
	case report.InsightVeryActive:
		return "📊 Very active tracking this month!"
	case report.InsightActive:
		return "📈 Good tracking this month"
	case report.InsightInactive:
		return "💡 Record more transactions for better insights"
	}
	return i.Code
}

func recommendationText(r report.Recommendation) string {
	switch r.Code {
	case report.RecommendReviewSpending:
		return "🚨 Review your monthly spending urgently"
	case report.RecommendCutSuperfluous:
		return "💡 Find expenses you can cut"
	case report.RecommendBudget:
		return "📊 Set a detailed budget and stick to it"
	case report.RecommendRaiseSavings:
		return "💰 Try to save at least 10% of your income"
	case report.RecommendStartInvesting:
		return "📈 Consider investing your savings"
	case report.RecommendDiversify:
		return "🎯 Diversify your portfolio"
	case report.RecommendTopCategoryHigh:
		share := "?"
		if r.Share != nil {
			share = r.Share.StringFixed(1)
		}
		return fmt.Sprintf("⚠️ Spending on %s is high (%s%% of the total)", esc(r.Category), share)
	}
	return r.Code
}

func renderStats(s report.UserStats, currency string) string {
	if s.TransactionCount == 0 && s.OpenPositions == 0 {
		return "📭 Nothing recorded yet. Use /expense or /income to start."
	}
	var b strings.Builder
	b.WriteString("📈 *Your statistics*\n\n")
	fmt.Fprintf(&b, "Transactions: %d (%d income, %d expense)\n", s.TransactionCount, s.IncomeCount, s.ExpenseCount)
	fmt.Fprintf(&b, "Total income: %s\n", money.Format(s.TotalIncome, currency))
	fmt.Fprintf(&b, "Total expenses: %s\n", money.Format(s.TotalExpense, currency))
	if s.FirstTransaction != nil {
		fmt.Fprintf(&b, "From %s to %s, %d active days\n",
			s.FirstTransaction.Format("02/01/2006"), s.LastTransaction.Format("02/01/2006"), s.ActiveDays)
	}
	fmt.Fprintf(&b, "Open positions: %d (%s invested)\n", s.OpenPositions, money.Format(s.TotalInvested, currency))
	fmt.Fprintf(&b, "Custom categories: %d", s.CustomCategories)
	return b.String()
}
