package position

import (
	"context"
	"fmt"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
)

// Valuation is a position marked to a market price. Without a price the
// market fields stay nil: an unknown gain is not a zero gain.
type Valuation struct {
	Ticker         string           `json:"ticker"`
	AssetType      domain.AssetType `json:"asset_type"`
	Quantity       money.Amount     `json:"quantity"`
	AverageCost    money.Amount     `json:"average_cost"`
	Invested       money.Amount     `json:"invested"`
	MarketPrice    *money.Amount    `json:"market_price,omitempty"`
	MarketValue    *money.Amount    `json:"market_value,omitempty"`
	UnrealizedGain *money.Amount    `json:"unrealized_gain,omitempty"`
}

func (v Valuation) Priced() bool { return v.MarketPrice != nil }

// Value marks pos to price, which may be nil.
func Value(pos domain.Position, price *money.Amount) Valuation {
	v := Valuation{
		Ticker:      pos.Ticker,
		AssetType:   pos.AssetType,
		Quantity:    pos.Quantity,
		AverageCost: pos.AverageCost,
		Invested:    pos.Invested(),
	}
	if price == nil {
		return v
	}
	p := *price
	mv := pos.Quantity.Mul(p)
	gain := pos.Quantity.Mul(p.Sub(pos.AverageCost))
	v.MarketPrice, v.MarketValue, v.UnrealizedGain = &p, &mv, &gain
	return v
}

// CurrentValue loads the user's position in ticker and marks it to price.
func (e *Engine) CurrentValue(ctx context.Context, user domain.UserID, ticker string, price *money.Amount) (Valuation, error) {
	ticker = NormalizeTicker(ticker)
	var pos domain.Position
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		pos, err = tx.GetPosition(ctx, ticker)
		return err
	})
	if err != nil {
		return Valuation{}, fmt.Errorf("value %s: %w", ticker, err)
	}
	return Value(pos, price), nil
}
