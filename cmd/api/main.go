// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"finance-tracker/internal/app"
	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handler"
	"finance-tracker/internal/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	app.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	tokenService := auth.NewTokenService(cfg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Telegram webhook, only when a public URL is known; otherwise run cmd/bot.
	if webhookBase := os.Getenv("RENDER_EXTERNAL_URL"); cfg.BotToken != "" && webhookBase != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			slog.Error("telegram init failed", "error", err)
			os.Exit(1)
		}
		webhookURL := strings.TrimRight(webhookBase, "/") + "/telegram"
		wh, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			slog.Error("bad webhook url", "url", webhookURL, "error", err)
			os.Exit(1)
		}
		if _, err := bot.Request(wh); err != nil {
			slog.Error("set webhook failed", "error", err)
			os.Exit(1)
		}
		slog.Info("telegram webhook set", "url", webhookURL, "bot", bot.Self.UserName)
		router.POST("/telegram", a.Bot(cfg).Webhook(bot))
	}

	h := handler.New(handler.Services{
		Ledger:    a.Ledger,
		Positions: a.Positions,
		Reports:   a.Reports,
		Exporter:  a.Exporter,
		Prices:    a.Prices,
		Tokens:    tokenService,
	})
	h.Register(router.Group("/api/v1"), middleware.NewAuthMiddleware(tokenService).RequireAuth())

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.ServerPort, "storage", cfg.Storage)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
