package position

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage/memory"
)

var ctx = context.Background()

func newEngine() *Engine {
	return New(memory.NewStorage(), money.PriceScale, money.QuantityScale).
		WithClock(func() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) })
}

func amt(s string) money.Amount {
	a, err := money.Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func buy(t *testing.T, e *Engine, user domain.UserID, ticker, qty, price string) domain.Position {
	t.Helper()
	pos, err := e.ApplyBuy(ctx, user, BuyInput{Ticker: ticker, AssetType: domain.Equity, Quantity: amt(qty), UnitPrice: amt(price)})
	if err != nil {
		t.Fatalf("ApplyBuy(%s %s@%s): %v", ticker, qty, price, err)
	}
	return pos
}

var ignoreTimes = cmpopts.IgnoreFields(domain.Position{}, "UpdatedAt")

func TestBuySellExample(t *testing.T) {
	e := newEngine()

	pos := buy(t, e, 1, "PETR4", "10", "100.00")
	if !pos.Quantity.Equal(amt("10")) || !pos.AverageCost.Equal(amt("100")) {
		t.Fatalf("after first buy: %+v", pos)
	}
	pos = buy(t, e, 1, "PETR4", "10", "120.00")
	if !pos.Quantity.Equal(amt("20")) || !pos.AverageCost.Equal(amt("110")) {
		t.Fatalf("after second buy: %+v", pos)
	}

	res, err := e.ApplySell(ctx, 1, SellInput{Ticker: "PETR4", Quantity: amt("5"), UnitPrice: amt("130.00")})
	if err != nil {
		t.Fatalf("ApplySell: %v", err)
	}
	if !res.RealizedGain.Equal(amt("100.00")) {
		t.Errorf("realized gain = %s, want 100.00", res.RealizedGain)
	}
	if !res.Position.Quantity.Equal(amt("15")) || !res.Position.AverageCost.Equal(amt("110")) {
		t.Errorf("after sell: %+v", res.Position)
	}
}

func TestSellMoreThanHeldLeavesPositionUnchanged(t *testing.T) {
	e := newEngine()
	before := buy(t, e, 1, "VALE3", "3", "61.25")

	for _, tc := range []struct {
		name   string
		ticker string
		qty    string
	}{
		{"exceeds quantity", "VALE3", "3.00000001"},
		{"never held", "ITUB4", "1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ApplySell(ctx, 1, SellInput{Ticker: tc.ticker, Quantity: amt(tc.qty), UnitPrice: amt("70")})
			if !errors.Is(err, domain.ErrInsufficientHolding) {
				t.Fatalf("ApplySell() = %v, want ErrInsufficientHolding", err)
			}
		})
	}

	got, err := e.Portfolio(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]domain.Position{before}, got, ignoreTimes); diff != "" {
		t.Errorf("position changed (-want +got):\n%s", diff)
	}
	lots, err := e.History(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(lots) != 1 {
		t.Errorf("failed sells left %d lots, want 1", len(lots))
	}
}

func TestSellThenBuyRestores(t *testing.T) {
	e := newEngine()
	buy(t, e, 1, "BTC", "0.5", "300000")
	before := buy(t, e, 1, "BTC", "0.25", "351234.56")

	price := before.AverageCost
	if _, err := e.ApplySell(ctx, 1, SellInput{Ticker: "BTC", Quantity: amt("0.3"), UnitPrice: price}); err != nil {
		t.Fatal(err)
	}
	after, err := e.ApplyBuy(ctx, 1, BuyInput{Ticker: "BTC", Quantity: amt("0.3"), UnitPrice: price})
	if err != nil {
		t.Fatal(err)
	}
	if !after.Quantity.Equal(before.Quantity) || !after.AverageCost.Equal(before.AverageCost) {
		t.Errorf("after sell+buy: qty %s avg %s, want qty %s avg %s",
			after.Quantity, after.AverageCost, before.Quantity, before.AverageCost)
	}
	if after.AssetType != domain.Equity {
		t.Errorf("asset type = %q, want it kept from the first buy", after.AssetType)
	}
}

func TestAverageIsWeightedMean(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := range 20 {
		e := newEngine()
		sumQty, sumCost := money.Zero, money.Zero
		for range 1 + r.IntN(12) {
			q := money.FromMinor(int64(1+r.IntN(100000)), 3)
			p := money.FromMinor(int64(1+r.IntN(10000000)), 2)
			sumQty = sumQty.Add(q)
			sumCost = sumCost.Add(q.Mul(p))
			if _, err := e.ApplyBuy(ctx, 1, BuyInput{Ticker: "ABC", Quantity: q, UnitPrice: p}); err != nil {
				t.Fatal(err)
			}
			// unrelated ticker interleaved
			if _, err := e.ApplyBuy(ctx, 1, BuyInput{Ticker: "XYZ", Quantity: amt("1"), UnitPrice: p}); err != nil {
				t.Fatal(err)
			}
		}
		got, err := e.CurrentValue(ctx, 1, "abc", nil)
		if err != nil {
			t.Fatal(err)
		}
		want := sumCost.Div(sumQty, money.PriceScale)
		if !got.AverageCost.Equal(want) || !got.Quantity.Equal(sumQty) {
			t.Errorf("round %d: avg %s qty %s, want avg %s qty %s", round, got.AverageCost, got.Quantity, want, sumQty)
		}
	}
}

func TestAverageCostRoundsHalfUp(t *testing.T) {
	e := newEngine()
	buy(t, e, 1, "KNRI11", "1", "1")
	pos := buy(t, e, 1, "KNRI11", "2", "1.00000001")
	// (1 + 2.00000002) / 3 = 1.0000000066...
	if want := amt("1.00000001"); !pos.AverageCost.Equal(want) {
		t.Errorf("avg = %s, want %s", pos.AverageCost, want)
	}
}

func TestCloseResetsAverageAndKeepsRecord(t *testing.T) {
	e := newEngine()
	buy(t, e, 1, "WEGE3", "4", "37.5")
	res, err := e.ApplySell(ctx, 1, SellInput{Ticker: "wege3", Quantity: amt("4"), UnitPrice: amt("30")})
	if err != nil {
		t.Fatal(err)
	}
	if !res.RealizedGain.Equal(amt("-30")) {
		t.Errorf("realized gain = %s, want -30", res.RealizedGain)
	}
	if res.Position.Open() || !res.Position.AverageCost.IsZero() || !res.Position.CostBasis.IsZero() {
		t.Errorf("closed position = %+v", res.Position)
	}

	all, err := e.Portfolio(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Ticker != "WEGE3" {
		t.Errorf("closed position not retained: %+v", all)
	}

	pos := buy(t, e, 1, "WEGE3", "1", "40")
	if !pos.AverageCost.Equal(amt("40")) {
		t.Errorf("reopened avg = %s, want 40", pos.AverageCost)
	}
}

func TestInvalidLots(t *testing.T) {
	e := newEngine()
	tests := []struct {
		name    string
		in      BuyInput
		wantErr error
	}{
		{"zero quantity", BuyInput{Ticker: "ABC", Quantity: money.Zero, UnitPrice: amt("1")}, domain.ErrInvalidAmount},
		{"negative price", BuyInput{Ticker: "ABC", Quantity: amt("1"), UnitPrice: amt("-1")}, domain.ErrInvalidAmount},
		{"too precise quantity", BuyInput{Ticker: "ABC", Quantity: amt("0.000000001"), UnitPrice: amt("1")}, domain.ErrInvalidAmount},
		{"bad ticker", BuyInput{Ticker: "A", Quantity: amt("1"), UnitPrice: amt("1")}, domain.ErrInvalidInput},
		{"bad asset type", BuyInput{Ticker: "ABC", AssetType: "stock", Quantity: amt("1"), UnitPrice: amt("1")}, domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.ApplyBuy(ctx, 1, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("ApplyBuy() = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if _, err := e.ApplySell(ctx, 1, SellInput{Ticker: "ABC", Quantity: amt("1"), UnitPrice: money.Zero}); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("ApplySell(zero price) = %v, want ErrInvalidAmount", err)
	}
}

func TestFutureLotsRejected(t *testing.T) {
	e := newEngine()
	tomorrow := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	buy(t, e, 1, "ABC", "10", "10")

	if _, err := e.ApplyBuy(ctx, 1, BuyInput{Ticker: "ABC", Quantity: amt("1"), UnitPrice: amt("1"), OccurredOn: tomorrow}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ApplyBuy(tomorrow) = %v, want ErrInvalidInput", err)
	}
	if _, err := e.ApplySell(ctx, 1, SellInput{Ticker: "ABC", Quantity: amt("1"), UnitPrice: amt("20"), OccurredOn: tomorrow}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ApplySell(tomorrow) = %v, want ErrInvalidInput", err)
	}
	lots, err := e.History(ctx, 1, "ABC")
	if err != nil {
		t.Fatal(err)
	}
	if len(lots) != 1 {
		t.Errorf("History() has %d lots, want only the first buy", len(lots))
	}

	e.WithFutureTolerance(24 * time.Hour)
	if _, err := e.ApplySell(ctx, 1, SellInput{Ticker: "ABC", Quantity: amt("1"), UnitPrice: amt("20"), OccurredOn: tomorrow}); err != nil {
		t.Errorf("ApplySell(tomorrow) with a day of tolerance: %v", err)
	}
}

func TestConcurrentBuysSerialize(t *testing.T) {
	e := newEngine()
	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.ApplyBuy(ctx, 1, BuyInput{Ticker: "IVVB11", Quantity: amt("1"), UnitPrice: money.FromInt(int64(100 + i))}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := e.CurrentValue(ctx, 1, "IVVB11", nil)
	if err != nil {
		t.Fatal(err)
	}
	// mean of 100..139
	if !got.Quantity.Equal(amt("40")) || !got.AverageCost.Equal(amt("119.5")) {
		t.Errorf("after concurrent buys: qty %s avg %s", got.Quantity, got.AverageCost)
	}
}

func TestValue(t *testing.T) {
	pos := domain.Position{Ticker: "ABC", Quantity: amt("15"), AverageCost: amt("110")}

	unpriced := Value(pos, nil)
	if unpriced.Priced() || unpriced.UnrealizedGain != nil {
		t.Errorf("Value(nil) = %+v, want no market fields", unpriced)
	}
	if !unpriced.Invested.Equal(amt("1650")) {
		t.Errorf("invested = %s, want 1650", unpriced.Invested)
	}

	p := amt("100")
	v := Value(pos, &p)
	if !v.MarketValue.Equal(amt("1500")) || !v.UnrealizedGain.Equal(amt("-150")) {
		t.Errorf("Value(100) = market %s gain %s", v.MarketValue, v.UnrealizedGain)
	}
}

func TestCurrentValueNotFound(t *testing.T) {
	e := newEngine()
	buy(t, e, 1, "ABC", "1", "1")
	if _, err := e.CurrentValue(ctx, 2, "ABC", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("CurrentValue(other user) = %v, want ErrNotFound", err)
	}
}

func TestRealizedGains(t *testing.T) {
	e := newEngine()
	for i, m := range []time.Month{time.January, time.February, time.February} {
		on := time.Date(2025, m, 10+i, 0, 0, 0, 0, time.UTC)
		if _, err := e.ApplyBuy(ctx, 1, BuyInput{Ticker: "ABC", Quantity: amt("10"), UnitPrice: amt("10"), OccurredOn: on}); err != nil {
			t.Fatal(err)
		}
		if _, err := e.ApplySell(ctx, 1, SellInput{Ticker: "ABC", Quantity: amt("1"), UnitPrice: amt(fmt.Sprint(12 + i)), OccurredOn: on}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := e.RealizedGains(ctx, 1, domain.MonthWindow(2025, time.February))
	if err != nil {
		t.Fatal(err)
	}
	// (13-10) + (14-10)
	if !got.Equal(amt("7")) {
		t.Errorf("RealizedGains(Feb) = %s, want 7", got)
	}

	lots, err := e.History(ctx, 1, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(lots) != 6 || lots[0].Side != domain.Buy || lots[1].Side != domain.Sell {
		t.Errorf("History() = %+v", lots)
	}
}
