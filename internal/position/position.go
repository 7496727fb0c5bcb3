// Package position keeps per-ticker holdings at weighted-average cost.
//
// The stored CostBasis is never rounded; AverageCost is recomputed from it after
// every mutation and rounded half-up to the price scale. A sell realizes
// quantity × (price − average cost) and leaves the average untouched, and a
// position sold down to zero keeps its record with the average reset.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
	val "finance-tracker/internal/validator"
)

type Engine struct {
	store         storage.Store
	priceScale    int32
	quantityScale int32
	future        time.Duration
	now           func() time.Time
}

func New(store storage.Store, priceScale, quantityScale int32) *Engine {
	return &Engine{store: store, priceScale: priceScale, quantityScale: quantityScale, now: time.Now}
}

// WithClock replaces the clock used when a lot carries no date.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithFutureTolerance lets lots be dated up to d after today. The default is 0.
func (e *Engine) WithFutureTolerance(d time.Duration) *Engine {
	e.future = d
	return e
}

type BuyInput struct {
	Ticker     string           `validate:"required,ticker"`
	AssetType  domain.AssetType `validate:"omitempty,assettype"`
	Quantity   money.Amount
	UnitPrice  money.Amount
	OccurredOn time.Time
}

type SellInput struct {
	Ticker     string `validate:"required,ticker"`
	Quantity   money.Amount
	UnitPrice  money.Amount
	OccurredOn time.Time
}

type SellResult struct {
	Position     domain.Position `json:"position"`
	RealizedGain money.Amount    `json:"realized_gain"`
}

// NormalizeTicker upper-cases and trims a user-typed ticker.
func NormalizeTicker(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (e *Engine) ApplyBuy(ctx context.Context, user domain.UserID, in BuyInput) (domain.Position, error) {
	in.Ticker = NormalizeTicker(in.Ticker)
	if err := val.Check(in); err != nil {
		return domain.Position{}, err
	}
	if err := e.checkLot(in.Quantity, in.UnitPrice); err != nil {
		return domain.Position{}, err
	}
	on, err := e.lotDate(in.OccurredOn)
	if err != nil {
		return domain.Position{}, err
	}

	var pos domain.Position
	err = e.store.Update(ctx, user, func(tx storage.Tx) error {
		var err error
		pos, err = e.load(ctx, tx, in.Ticker)
		if err != nil {
			return err
		}
		if in.AssetType != "" {
			pos.AssetType = in.AssetType
		} else if pos.AssetType == "" {
			pos.AssetType = domain.Equity
		}

		pos.CostBasis = pos.CostBasis.Add(in.Quantity.Mul(in.UnitPrice))
		pos.Quantity = pos.Quantity.Add(in.Quantity)
		pos.AverageCost = pos.CostBasis.Div(pos.Quantity, e.priceScale)

		if pos, err = tx.UpsertPosition(ctx, pos); err != nil {
			return err
		}
		_, err = tx.AppendLot(ctx, domain.LotEvent{
			Ticker:     in.Ticker,
			Side:       domain.Buy,
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
			OccurredOn: on,
		})
		return err
	})
	if err != nil {
		return domain.Position{}, fmt.Errorf("buy %s: %w", in.Ticker, err)
	}
	slog.Info("buy applied", "user_id", user, "ticker", pos.Ticker, "quantity", in.Quantity.String(), "average_cost", pos.AverageCost.String())
	return pos, nil
}

func (e *Engine) ApplySell(ctx context.Context, user domain.UserID, in SellInput) (SellResult, error) {
	in.Ticker = NormalizeTicker(in.Ticker)
	if err := val.Check(in); err != nil {
		return SellResult{}, err
	}
	if err := e.checkLot(in.Quantity, in.UnitPrice); err != nil {
		return SellResult{}, err
	}
	on, err := e.lotDate(in.OccurredOn)
	if err != nil {
		return SellResult{}, err
	}

	var res SellResult
	err = e.store.Update(ctx, user, func(tx storage.Tx) error {
		pos, err := tx.GetPosition(ctx, in.Ticker)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: no %s held", domain.ErrInsufficientHolding, in.Ticker)
		}
		if err != nil {
			return err
		}
		if in.Quantity.GreaterThan(pos.Quantity) {
			return fmt.Errorf("%w: selling %s of %s but only %s held",
				domain.ErrInsufficientHolding, in.Quantity, in.Ticker, pos.Quantity)
		}

		gain := in.Quantity.Mul(in.UnitPrice.Sub(pos.AverageCost))
		pos.Quantity = pos.Quantity.Sub(in.Quantity)
		if pos.Quantity.IsZero() {
			pos.AverageCost = money.Zero
			pos.CostBasis = money.Zero
		} else {
			pos.CostBasis = pos.Quantity.Mul(pos.AverageCost)
		}

		if pos, err = tx.UpsertPosition(ctx, pos); err != nil {
			return err
		}
		if _, err = tx.AppendLot(ctx, domain.LotEvent{
			Ticker:       in.Ticker,
			Side:         domain.Sell,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			RealizedGain: gain,
			OccurredOn:   on,
		}); err != nil {
			return err
		}
		res = SellResult{Position: pos, RealizedGain: gain}
		return nil
	})
	if err != nil {
		return SellResult{}, fmt.Errorf("sell %s: %w", in.Ticker, err)
	}
	slog.Info("sell applied", "user_id", user, "ticker", in.Ticker, "quantity", in.Quantity.String(), "realized_gain", res.RealizedGain.String())
	return res, nil
}

// Portfolio returns every position of the user, open or closed, by ticker.
func (e *Engine) Portfolio(ctx context.Context, user domain.UserID) ([]domain.Position, error) {
	var out []domain.Position
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListPositions(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}
	return out, nil
}

// History lists the applied lots of one ticker, oldest first. An empty ticker
// lists all of them.
func (e *Engine) History(ctx context.Context, user domain.UserID, ticker string) ([]domain.LotEvent, error) {
	ticker = NormalizeTicker(ticker)
	var out []domain.LotEvent
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListLots(ctx, ticker)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("lot history: %w", err)
	}
	return out, nil
}

// RealizedGains sums the gains of sells that happened inside w.
func (e *Engine) RealizedGains(ctx context.Context, user domain.UserID, w domain.Window) (money.Amount, error) {
	lots, err := e.History(ctx, user, "")
	if err != nil {
		return money.Zero, err
	}
	total := money.Zero
	for _, l := range lots {
		if l.Side == domain.Sell && w.Contains(l.OccurredOn) {
			total = total.Add(l.RealizedGain)
		}
	}
	return total, nil
}

func (e *Engine) load(ctx context.Context, tx storage.Tx, ticker string) (domain.Position, error) {
	pos, err := tx.GetPosition(ctx, ticker)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Position{Ticker: ticker}, nil
	}
	return pos, err
}

func (e *Engine) checkLot(quantity, price money.Amount) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than zero", domain.ErrInvalidAmount)
	}
	if !quantity.FitsScale(e.quantityScale) {
		return fmt.Errorf("%w: quantity %s has more than %d decimal places", domain.ErrInvalidAmount, quantity, e.quantityScale)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: unit price must be greater than zero", domain.ErrInvalidAmount)
	}
	if !price.FitsScale(e.priceScale) {
		return fmt.Errorf("%w: unit price %s has more than %d decimal places", domain.ErrInvalidAmount, price, e.priceScale)
	}
	return nil
}

func (e *Engine) lotDate(t time.Time) (time.Time, error) {
	now := e.now()
	if t.IsZero() {
		t = now
	}
	day := domain.Date(t)
	if day.After(domain.Date(now).Add(e.future)) {
		return time.Time{}, fmt.Errorf("%w: date %s is in the future", domain.ErrInvalidInput, day.Format(time.DateOnly))
	}
	return day, nil
}
