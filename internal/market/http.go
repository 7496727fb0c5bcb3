package market

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sethvargo/go-retry"

	"finance-tracker/internal/money"
	"finance-tracker/internal/position"
)

// HTTPSource asks a quote service for GET {base}/{ticker} and expects
// {"ticker": "PETR4", "price": "37.15"}. A 404 means no price.
type HTTPSource struct {
	base       string
	client     *http.Client
	maxRetries uint64
	backoff    time.Duration
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		base:       strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		maxRetries: 3,
		backoff:    200 * time.Millisecond,
	}
}

type quote struct {
	Ticker string        `json:"ticker"`
	Price  *money.Amount `json:"price"`
}

func (s *HTTPSource) PriceOf(ctx context.Context, ticker string) (money.Amount, bool, error) {
	ticker = position.NormalizeTicker(ticker)
	endpoint := s.base + "/" + url.PathEscape(ticker)

	var (
		price money.Amount
		found bool
	)
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			found = false
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("quote service returned %s", resp.Status))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("quote service returned %s", resp.Status)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return retry.RetryableError(err)
		}
		var q quote
		if err := json.Unmarshal(body, &q); err != nil {
			return fmt.Errorf("decode quote for %s: %w", ticker, err)
		}
		if q.Price == nil {
			found = false
			return nil
		}
		if !q.Price.IsPositive() {
			return fmt.Errorf("%w: quote for %s is %s", money.ErrInvalidAmount, ticker, q.Price)
		}
		price, found = *q.Price, true
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return money.Zero, false, err
		}
		return money.Zero, false, fmt.Errorf("price of %s: %w", ticker, err)
	}
	return price, found, nil
}
