// Package market supplies best-effort market prices for open positions.
package market

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"finance-tracker/internal/money"
	"finance-tracker/internal/position"
)

//go:generate go run go.uber.org/mock/mockgen -source=market.go -destination=mocks/market.go -package=mocks

// PriceSource returns the last known price of ticker. ok is false when the
// source has no price for it.
type PriceSource interface {
	PriceOf(ctx context.Context, ticker string) (price money.Amount, ok bool, err error)
}

// Static serves prices from a fixed table.
type Static map[string]money.Amount

func (s Static) PriceOf(_ context.Context, ticker string) (money.Amount, bool, error) {
	p, ok := s[position.NormalizeTicker(ticker)]
	return p, ok, nil
}

const quoteConcurrency = 4

// Quote looks up every ticker and keeps the prices it could get. Lookup
// errors are logged and the ticker is left unpriced.
func Quote(ctx context.Context, src PriceSource, tickers []string) map[string]money.Amount {
	var (
		mu     sync.Mutex
		prices = make(map[string]money.Amount, len(tickers))
		g      errgroup.Group
	)
	g.SetLimit(quoteConcurrency)
	for _, t := range tickers {
		g.Go(func() error {
			p, ok, err := src.PriceOf(ctx, t)
			if err != nil {
				slog.Warn("price lookup failed", "ticker", t, "error", err)
				return nil
			}
			if !ok || !p.IsPositive() {
				return nil
			}
			mu.Lock()
			prices[t] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return prices
}
