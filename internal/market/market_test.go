package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"finance-tracker/internal/market/mocks"
	"finance-tracker/internal/money"
)

func amt(s string) money.Amount {
	a, err := money.Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func fastSource(url string) *HTTPSource {
	s := NewHTTPSource(url, time.Second)
	s.backoff = time.Millisecond
	return s
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/PETR4":
			fmt.Fprint(w, `{"ticker":"PETR4","price":"37.15"}`)
		case "/BTC":
			fmt.Fprint(w, `{"ticker":"BTC","price":351234.56789}`)
		case "/NULL11":
			fmt.Fprint(w, `{"ticker":"NULL11","price":null}`)
		case "/NEG3":
			fmt.Fprint(w, `{"ticker":"NEG3","price":"-1"}`)
		case "/BAD3":
			w.WriteHeader(http.StatusBadRequest)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	src := fastSource(srv.URL + "/")

	tests := []struct {
		ticker    string
		wantPrice string
		wantOK    bool
		wantErr   bool
	}{
		{"petr4", "37.15", true, false},
		{"BTC", "351234.56789", true, false},
		{"NULL11", "0", false, false},
		{"UNKNOWN", "0", false, false},
		{"NEG3", "0", false, true},
		{"BAD3", "0", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.ticker, func(t *testing.T) {
			p, ok, err := src.PriceOf(context.Background(), tt.ticker)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PriceOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if ok != tt.wantOK || !p.Equal(amt(tt.wantPrice)) {
				t.Errorf("PriceOf() = %s, %v; want %s, %v", p, ok, tt.wantPrice, tt.wantOK)
			}
		})
	}
}

func TestHTTPSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ticker":"VALE3","price":"61.2"}`)
	}))
	defer srv.Close()

	p, ok, err := fastSource(srv.URL).PriceOf(context.Background(), "VALE3")
	if err != nil || !ok || !p.Equal(amt("61.2")) {
		t.Fatalf("PriceOf() = %s, %v, %v", p, ok, err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestHTTPSourceGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, _, err := fastSource(srv.URL).PriceOf(context.Background(), "VALE3"); err == nil {
		t.Fatal("PriceOf() succeeded against a failing server")
	}
	if got := calls.Load(); got != 4 {
		t.Errorf("server called %d times, want 1 try + 3 retries", got)
	}
}

func TestStatic(t *testing.T) {
	s := Static{"ABC": amt("1.5")}
	if p, ok, _ := s.PriceOf(context.Background(), " abc "); !ok || !p.Equal(amt("1.5")) {
		t.Errorf("PriceOf(abc) = %s, %v", p, ok)
	}
	if _, ok, _ := s.PriceOf(context.Background(), "XYZ"); ok {
		t.Error("PriceOf(XYZ) found a price")
	}
}

func TestQuoteIsBestEffort(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockPriceSource(ctrl)
	src.EXPECT().PriceOf(gomock.Any(), "ABC").Return(amt("10"), true, nil)
	src.EXPECT().PriceOf(gomock.Any(), "DEF").Return(money.Zero, false, nil)
	src.EXPECT().PriceOf(gomock.Any(), "GHI").Return(money.Zero, false, errors.New("timeout"))
	src.EXPECT().PriceOf(gomock.Any(), "JKL").Return(money.Zero, true, nil)

	got := Quote(context.Background(), src, []string{"ABC", "DEF", "GHI", "JKL"})
	want := map[string]money.Amount{"ABC": amt("10")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Quote() mismatch (-want +got):\n%s", diff)
	}
}
