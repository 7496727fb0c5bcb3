// cmd/bot/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"finance-tracker/internal/app"
	"finance-tracker/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	app.SetupLogger(cfg)

	if cfg.BotToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		slog.Error("telegram init failed", "error", err)
		os.Exit(1)
	}
	// A webhook left behind by cmd/api blocks getUpdates.
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Warn("delete webhook failed", "error", err)
	}

	slog.Info("bot started", "bot", api.Self.UserName, "storage", cfg.Storage)
	a.Bot(cfg).Poll(ctx, api)
	slog.Info("bot stopped")
}
