// Package app builds the services shared by the API server and the bot.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"finance-tracker/internal/config"
	"finance-tracker/internal/export"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/market"
	"finance-tracker/internal/position"
	"finance-tracker/internal/report"
	"finance-tracker/internal/storage"
	"finance-tracker/internal/storage/memory"
	"finance-tracker/internal/storage/postgres"
	"finance-tracker/internal/telegram"
)

type App struct {
	Store     storage.Store
	Ledger    *ledger.Service
	Positions *position.Engine
	Reports   *report.Engine
	Exporter  *export.Exporter
	// Prices is nil when no market data URL is configured.
	Prices market.PriceSource

	close func()
}

// SetupLogger installs the default text logger at the configured level.
func SetupLogger(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if cfg.Money.RoundingMode != "half-up" {
		return nil, fmt.Errorf("unsupported rounding mode %q", cfg.Money.RoundingMode)
	}

	a := &App{close: func() {}}
	switch cfg.Storage {
	case "memory":
		slog.Warn("using in-memory storage, data is lost on restart")
		a.Store = memory.NewStorage()
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DBConn)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping db: %w", err)
		}
		a.Store = postgres.NewStorage(pool)
		a.close = pool.Close
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}

	a.Reports = report.New(a.Store, report.Config{
		CacheTTL: cfg.Reports.CacheTTL,
		Health: report.HealthPolicy{
			SavingsWeight:       cfg.Reports.SavingsWeight,
			ConcentrationWeight: cfg.Reports.ConcentrationWeight,
		},
	})
	a.Ledger = ledger.New(a.Store, ledger.Config{
		MinAmount:            cfg.Ledger.MinAmount,
		MaxAmount:            cfg.Ledger.MaxAmount,
		CurrencyScale:        cfg.Money.CurrencyScale,
		MaxDescriptionLength: cfg.Ledger.MaxDescriptionLength,
		MaxCategoriesPerUser: cfg.Ledger.MaxCategoriesPerUser,
		BackdateTolerance:    cfg.Ledger.BackdateTolerance,
		FutureTolerance:      cfg.Ledger.FutureTolerance,
	}, a.Reports)
	a.Positions = position.New(a.Store, cfg.Money.PriceScale, cfg.Money.QuantityScale).
		WithFutureTolerance(cfg.Ledger.FutureTolerance)
	a.Exporter = export.New(a.Store, cfg.Money.Currency, cfg.Money.CurrencyScale)

	if cfg.Market.URL != "" {
		a.Prices = market.NewHTTPSource(cfg.Market.URL, cfg.Market.Timeout)
		slog.Info("market data enabled", "url", cfg.Market.URL)
	}
	return a, nil
}

// Bot wires a chat front end to the services.
func (a *App) Bot(cfg config.Config) *telegram.Bot {
	return telegram.New(telegram.Deps{
		Ledger:    a.Ledger,
		Positions: a.Positions,
		Reports:   a.Reports,
		Exporter:  a.Exporter,
		Prices:    a.Prices,
		Currency:  cfg.Money.Currency,
	})
}

func (a *App) Close() { a.close() }
