package report

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/market"
	"finance-tracker/internal/money"
	"finance-tracker/internal/position"
	"finance-tracker/internal/storage"
)

// basisPoints is the whole of an allocation: 100.00%.
const basisPoints = 10000

type PortfolioSummary struct {
	// TotalInvested is Σ quantity × average cost over open positions.
	TotalInvested money.Amount `json:"total_invested"`
	// TotalMarketValue carries unpriced positions at cost.
	TotalMarketValue money.Amount `json:"total_market_value"`
	// TotalUnrealizedGain covers priced positions only.
	TotalUnrealizedGain  money.Amount                      `json:"total_unrealized_gain"`
	Positions            []position.Valuation              `json:"positions"`
	Allocation           map[string]money.Amount           `json:"allocation"`
	AllocationByType     map[domain.AssetType]money.Amount `json:"allocation_by_type"`
	AssetCount           int                               `json:"asset_count"`
	DiversificationScore int                               `json:"diversification_score"`
	Unpriced             []string                          `json:"unpriced,omitempty"`
}

// PortfolioSummary values the user's open positions at prices. Tickers missing
// from prices are reported as unpriced.
func (e *Engine) PortfolioSummary(ctx context.Context, user domain.UserID, prices map[string]money.Amount) (PortfolioSummary, error) {
	positions, err := e.positions(ctx, user)
	if err != nil {
		return PortfolioSummary{}, err
	}
	return SummarizePortfolio(positions, prices), nil
}

// PortfolioSummaryLive asks src for the price of every open position first.
// A failing source leaves positions unpriced instead of failing the report.
func (e *Engine) PortfolioSummaryLive(ctx context.Context, user domain.UserID, src market.PriceSource) (PortfolioSummary, error) {
	positions, err := e.positions(ctx, user)
	if err != nil {
		return PortfolioSummary{}, err
	}
	var tickers []string
	for _, p := range positions {
		if p.Open() {
			tickers = append(tickers, p.Ticker)
		}
	}
	return SummarizePortfolio(positions, market.Quote(ctx, src, tickers)), nil
}

func (e *Engine) positions(ctx context.Context, user domain.UserID) ([]domain.Position, error) {
	var out []domain.Position
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListPositions(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("portfolio summary: %w", err)
	}
	return out, nil
}

// SummarizePortfolio is the pure part of PortfolioSummary. Closed positions
// are skipped and a non-positive price counts as no price.
func SummarizePortfolio(positions []domain.Position, prices map[string]money.Amount) PortfolioSummary {
	s := PortfolioSummary{
		Allocation:       map[string]money.Amount{},
		AllocationByType: map[domain.AssetType]money.Amount{},
	}
	var (
		weights = map[string]money.Amount{}
		types   = map[domain.AssetType]bool{}
		typeOf  = map[string]domain.AssetType{}
	)
	for _, p := range positions {
		if !p.Open() {
			continue
		}
		var price *money.Amount
		if v, ok := prices[p.Ticker]; ok && v.IsPositive() {
			price = &v
		}
		val := position.Value(p, price)
		s.Positions = append(s.Positions, val)
		s.TotalInvested = s.TotalInvested.Add(val.Invested)

		weight := val.Invested
		if val.Priced() {
			weight = *val.MarketValue
			s.TotalUnrealizedGain = s.TotalUnrealizedGain.Add(*val.UnrealizedGain)
		} else {
			s.Unpriced = append(s.Unpriced, p.Ticker)
		}
		s.TotalMarketValue = s.TotalMarketValue.Add(weight)
		weights[p.Ticker] = weight
		types[p.AssetType] = true
		typeOf[p.Ticker] = p.AssetType
	}
	s.AssetCount = len(s.Positions)
	s.DiversificationScore = min(100, s.AssetCount*5+len(types)*15)

	bp := Allocate(weights)
	byType := map[domain.AssetType]int64{}
	for t, n := range bp {
		s.Allocation[t] = percent(n)
		byType[typeOf[t]] += n
	}
	for t, n := range byType {
		s.AllocationByType[t] = percent(n)
	}
	return s
}

func percent(bp int64) money.Amount { return money.FromMinor(bp, 2) }

// Allocate splits 10000 basis points across weights proportionally with the
// largest-remainder method, so the parts always add up to exactly 10000.
// Ties on the remainder go to the alphabetically first key. Non-positive
// weights get 0, and with no positive weight nothing is allocated.
func Allocate(weights map[string]money.Amount) map[string]int64 {
	positive := make(map[string]money.Amount, len(weights))
	for k, w := range weights {
		if w.IsPositive() {
			positive[k] = w
		}
	}
	total := money.Sum(slices.Collect(maps.Values(positive))...)
	if !total.IsPositive() {
		return map[string]int64{}
	}

	type share struct {
		key  string
		bp   int64
		rest decimal.Decimal
	}
	shares := make([]share, 0, len(positive))
	var assigned int64
	for k, w := range positive {
		q, r := w.Decimal().Mul(decimal.NewFromInt(basisPoints)).QuoRem(total.Decimal(), 0)
		shares = append(shares, share{key: k, bp: q.IntPart(), rest: r})
		assigned += q.IntPart()
	}
	slices.SortFunc(shares, func(a, b share) int {
		if c := b.rest.Cmp(a.rest); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	// every remainder is below one basis point, so fewer than len(shares) are left
	for i := range basisPoints - assigned {
		shares[i].bp++
	}

	out := make(map[string]int64, len(weights))
	for k := range weights {
		out[k] = 0
	}
	for _, s := range shares {
		out[s.key] = s.bp
	}
	return out
}
