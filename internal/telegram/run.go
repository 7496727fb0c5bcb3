package telegram

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"finance-tracker/internal/domain"
)

// Sender is the part of *tgbotapi.BotAPI used to answer.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// HandleUpdate answers a single update. Updates without a text message are
// ignored.
func (b *Bot) HandleUpdate(ctx context.Context, api Sender, update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.From == nil {
		return
	}
	reply := b.Handle(ctx, domain.UserID(m.From.ID), m.Chat.ID, m.Text)

	var out tgbotapi.Chattable
	if reply.File != nil {
		doc := tgbotapi.NewDocument(m.Chat.ID, tgbotapi.FileBytes{Name: reply.FileName, Bytes: reply.File})
		doc.Caption = reply.Text
		out = doc
	} else {
		msg := tgbotapi.NewMessage(m.Chat.ID, reply.Text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		out = msg
	}
	if _, err := api.Send(out); err != nil {
		slog.Error("send reply", "chat_id", m.Chat.ID, "error", err)
	}
}

// Poll reads updates with long polling until ctx is done.
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, api, update)
		}
	}
}

// Webhook serves updates pushed by Telegram.
func (b *Bot) Webhook(api Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			slog.Error("decode telegram update", "error", err)
			c.Status(http.StatusBadRequest)
			return
		}
		b.HandleUpdate(c.Request.Context(), api, update)
		c.Status(http.StatusOK)
	}
}
