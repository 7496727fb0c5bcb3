package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestMustLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "CURRENCY", "PRICE_SCALE", "REPORT_CACHE_TTL", "MIN_TRANSACTION_AMOUNT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := MustLoad()

	if cfg.ServerPort != ":8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.Money.Currency != "BRL" || cfg.Money.PriceScale != 8 || cfg.Money.CurrencyScale != 2 {
		t.Errorf("Money = %+v", cfg.Money)
	}
	if cfg.Reports.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.Reports.CacheTTL)
	}
	if cfg.Ledger.MinAmount.String() != "0.01" {
		t.Errorf("MinAmount = %s", cfg.Ledger.MinAmount)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestMustLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("PRICE_SCALE", "4")
	t.Setenv("REPORT_CACHE_TTL", "30s")
	t.Setenv("BACKDATE_TOLERANCE", "not-a-duration")
	t.Setenv("MAX_TRANSACTION_AMOUNT", "500")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := MustLoad()
	if cfg.ServerPort != ":9000" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.Money.Currency != "USD" || cfg.Money.PriceScale != 4 {
		t.Errorf("Money = %+v", cfg.Money)
	}
	if cfg.Reports.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v", cfg.Reports.CacheTTL)
	}
	if cfg.Ledger.BackdateTolerance != 10*365*24*time.Hour {
		t.Errorf("malformed BACKDATE_TOLERANCE should fall back, got %v", cfg.Ledger.BackdateTolerance)
	}
	if cfg.Ledger.MaxAmount.String() != "500" {
		t.Errorf("MaxAmount = %s", cfg.Ledger.MaxAmount)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}
