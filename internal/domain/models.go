// internal/domain/models.go
package domain

import (
	"time"

	"finance-tracker/internal/money"
)

type UserID int64

type Kind string

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

func (k Kind) Valid() bool { return k == Income || k == Expense }

type AssetType string

const (
	Equity      AssetType = "equity"
	Fund        AssetType = "fund"
	Crypto      AssetType = "crypto"
	FixedIncome AssetType = "fixed-income"
	ETF         AssetType = "etf"
)

func (t AssetType) Valid() bool {
	switch t {
	case Equity, Fund, Crypto, FixedIncome, ETF:
		return true
	}
	return false
}

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Category groups transactions of a single kind.
type Category struct {
	ID        int64     `json:"id"`
	UserID    UserID    `json:"-"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Icon      string    `json:"icon,omitempty"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is a dated income or expense entry. Amount is always positive,
// Kind carries the direction.
type Transaction struct {
	ID            int64        `json:"id"`
	UserID        UserID       `json:"-"`
	Kind          Kind         `json:"kind"`
	Amount        money.Amount `json:"amount"`
	CategoryID    int64        `json:"category_id"`
	PaymentMethod string       `json:"payment_method"`
	OccurredOn    time.Time    `json:"occurred_on"`
	Description   string       `json:"description"`
	Notes         string       `json:"notes,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Position is a user's holding in one ticker. AverageCost is zero when
// Quantity is zero. CostBasis is the unrounded total cost of the open
// quantity; AverageCost is CostBasis/Quantity rounded to the price scale.
type Position struct {
	UserID      UserID       `json:"-"`
	Ticker      string       `json:"ticker"`
	AssetType   AssetType    `json:"asset_type"`
	Quantity    money.Amount `json:"quantity"`
	AverageCost money.Amount `json:"average_cost"`
	CostBasis   money.Amount `json:"cost_basis"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (p Position) Open() bool { return p.Quantity.IsPositive() }

// Invested is quantity times average cost.
func (p Position) Invested() money.Amount { return p.Quantity.Mul(p.AverageCost) }

// LotEvent is one applied buy or sell. RealizedGain is set for sells only.
type LotEvent struct {
	ID           int64        `json:"id"`
	UserID       UserID       `json:"-"`
	Ticker       string       `json:"ticker"`
	Side         Side         `json:"side"`
	Quantity     money.Amount `json:"quantity"`
	UnitPrice    money.Amount `json:"unit_price"`
	RealizedGain money.Amount `json:"realized_gain"`
	OccurredOn   time.Time    `json:"occurred_on"`
}

// Window is a half-open date range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// MonthWindow returns the given calendar month.
func MonthWindow(year int, month time.Month) Window {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{From: from, To: from.AddDate(0, 1, 0)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Days is the number of calendar days covered by the window.
func (w Window) Days() int {
	return int(w.To.Sub(w.From).Round(24*time.Hour) / (24 * time.Hour))
}

// Date keeps the calendar date of t (in t's own location) as midnight UTC.
// All occurred_on values and windows are stored this way.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
