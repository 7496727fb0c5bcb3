// Package telegram turns chat messages into ledger, position and report calls
// and renders their results.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/export"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/market"
	"finance-tracker/internal/position"
	"finance-tracker/internal/report"
	"finance-tracker/internal/session"
)

const sessionTimeout = 30 * time.Minute

// Reply is what the bot answers with. File, when set, is sent as a document.
type Reply struct {
	Text     string
	File     []byte
	FileName string
}

type Deps struct {
	Ledger    *ledger.Service
	Positions *position.Engine
	Reports   *report.Engine
	Exporter  *export.Exporter
	// Prices is optional; without it the portfolio is shown at cost.
	Prices   market.PriceSource
	Currency string
}

type Bot struct {
	Deps
	sessions *session.Manager
	now      func() time.Time
}

func New(d Deps) *Bot {
	return &Bot{Deps: d, sessions: session.NewManager(sessionTimeout), now: time.Now}
}

// Handle answers one text message from user in chat.
func (b *Bot) Handle(ctx context.Context, user domain.UserID, chatID int64, text string) Reply {
	text = sanitize(fixEncoding(text))
	cmd, arg := splitCommand(text)
	slog.Debug("message received", "user_id", user, "chat_id", chatID, "command", cmd)

	var (
		reply Reply
		err   error
	)
	switch cmd {
	case "/start", "/help":
		reply, err = b.start(ctx, user)
	case "/cancel":
		reply = b.cancel(chatID)
	case "/expense":
		reply, err = b.begin(ctx, user, chatID, session.RecordExpense, arg)
	case "/income":
		reply, err = b.begin(ctx, user, chatID, session.RecordIncome, arg)
	case "/buy":
		reply, err = b.begin(ctx, user, chatID, session.BuyAsset, arg)
	case "/sell":
		reply, err = b.begin(ctx, user, chatID, session.SellAsset, arg)
	case "/month":
		reply, err = b.month(ctx, user, arg)
	case "/portfolio":
		reply, err = b.portfolio(ctx, user)
	case "/categories":
		reply, err = b.categories(ctx, user)
	case "/export":
		reply, err = b.export(ctx, user)
	case "/insights":
		reply, err = b.insights(ctx, user, arg)
	case "/stats":
		reply, err = b.stats(ctx, user)
	case "/deletedata":
		reply, err = b.deleteData(ctx, user, chatID, arg)
	case "":
		reply, err = b.continueFlow(ctx, user, chatID, text)
	default:
		reply = Reply{Text: "Unknown command. Send /help"}
	}
	if err != nil {
		return Reply{Text: describe(err)}
	}
	return reply
}

func (b *Bot) start(ctx context.Context, user domain.UserID) (Reply, error) {
	if _, err := b.Ledger.EnsureDefaults(ctx, user); err != nil {
		return Reply{}, err
	}
	return Reply{Text: helpText}, nil
}

const helpText = "💰 *Finance tracker*\n\n" +
	"Commands:\n" +
	"/expense - record an expense (`/expense 150,50` skips the first question)\n" +
	"/income - record an income\n" +
	"/buy - register a purchase of an asset\n" +
	"/sell - register a sale of an asset\n" +
	"/month - summary of the current month (`/month 2025-01` for another one)\n" +
	"/portfolio - your investments\n" +
	"/categories - your categories\n" +
	"/export - download everything as YAML\n" +
	"/insights - quick insights and advice (`/insights 2025-01` for another month)\n" +
	"/stats - everything you recorded so far\n" +
	"/deletedata - erase all your data\n" +
	"/cancel - stop the current operation"

func (b *Bot) cancel(chatID int64) Reply {
	b.sessions.Do(chatID, func(*session.Session) *session.Session { return nil })
	return Reply{Text: "Operation cancelled."}
}

func (b *Bot) begin(ctx context.Context, user domain.UserID, chatID int64, flow session.Flow, arg string) (Reply, error) {
	var cats []domain.Category
	if kind, ok := flow.Kind(); ok {
		var err error
		if cats, err = b.Ledger.EnsureDefaults(ctx, user); err != nil {
			return Reply{}, err
		}
		cats = filterKind(cats, kind)
	}
	s, err := session.New(flow, cats)
	if err != nil {
		return Reply{}, err
	}

	var reply Reply
	b.sessions.Do(chatID, func(*session.Session) *session.Session {
		if arg != "" {
			if err := s.Advance(arg, b.now()); err != nil {
				reply = Reply{Text: describe(err) + "\n\n" + prompt(s)}
				return s
			}
		}
		reply = Reply{Text: prompt(s)}
		return s
	})
	return reply, nil
}

func (b *Bot) continueFlow(ctx context.Context, user domain.UserID, chatID int64, text string) (Reply, error) {
	var (
		reply  Reply
		active bool
	)
	b.sessions.Do(chatID, func(s *session.Session) *session.Session {
		if s == nil {
			return nil
		}
		active = true
		if err := s.Advance(text, b.now()); err != nil {
			reply = Reply{Text: describe(err) + "\n\n" + prompt(s)}
			return s
		}
		if !s.Done() {
			reply = Reply{Text: prompt(s)}
			return s
		}
		reply = b.finish(ctx, user, s)
		return nil
	})
	if !active {
		return Reply{Text: "Send a command to start. /help lists them."}, nil
	}
	return reply, nil
}

func (b *Bot) finish(ctx context.Context, user domain.UserID, s *session.Session) Reply {
	switch s.Flow {
	case session.RecordExpense, session.RecordIncome:
		t, err := b.Ledger.Record(ctx, user, s.Entry())
		if err != nil {
			return Reply{Text: describe(err)}
		}
		return Reply{Text: renderRecorded(t, s.Category.Name, b.Currency)}
	case session.BuyAsset:
		p, err := b.Positions.ApplyBuy(ctx, user, s.Buy())
		if err != nil {
			return Reply{Text: describe(err)}
		}
		return Reply{Text: renderBuy(p, b.Currency)}
	case session.SellAsset:
		res, err := b.Positions.ApplySell(ctx, user, s.Sell())
		if err != nil {
			return Reply{Text: describe(err)}
		}
		return Reply{Text: renderSell(res, b.Currency)}
	}
	return Reply{Text: "Nothing to do."}
}

// monthArg parses an optional YYYY-MM argument, defaulting to this month.
func (b *Bot) monthArg(arg string) (time.Time, error) {
	if arg == "" {
		return b.now(), nil
	}
	t, err := time.Parse("2006-01", arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month must look like 2025-01", domain.ErrInvalidInput)
	}
	return t, nil
}

func (b *Bot) month(ctx context.Context, user domain.UserID, arg string) (Reply, error) {
	at, err := b.monthArg(arg)
	if err != nil {
		return Reply{}, err
	}
	s, err := b.Reports.MonthlySummary(ctx, user, at.Year(), at.Month())
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: renderSummary(s, b.Currency)}, nil
}

func (b *Bot) insights(ctx context.Context, user domain.UserID, arg string) (Reply, error) {
	at, err := b.monthArg(arg)
	if err != nil {
		return Reply{}, err
	}
	in, err := b.Reports.Insights(ctx, user, at.Year(), at.Month())
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: renderInsights(in, b.Currency)}, nil
}

func (b *Bot) stats(ctx context.Context, user domain.UserID) (Reply, error) {
	s, err := b.Reports.UserStats(ctx, user)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: renderStats(s, b.Currency)}, nil
}

// deleteData wipes the user's records once the argument repeats their id.
func (b *Bot) deleteData(ctx context.Context, user domain.UserID, chatID int64, arg string) (Reply, error) {
	if arg == "" {
		return Reply{Text: fmt.Sprintf("⚠️ This deletes all your transactions, categories and investments for good.\n"+
			"To confirm send: `/deletedata %d`", user)}, nil
	}
	confirm, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: send /deletedata followed by your id", domain.ErrInvalidInput)
	}
	if _, err := b.Ledger.DeleteUserData(ctx, user, domain.UserID(confirm)); err != nil {
		return Reply{}, err
	}
	b.sessions.Do(chatID, func(*session.Session) *session.Session { return nil })
	return Reply{Text: "🗑 All your data was deleted. Send /start to begin again."}, nil
}

func (b *Bot) portfolio(ctx context.Context, user domain.UserID) (Reply, error) {
	var (
		s   report.PortfolioSummary
		err error
	)
	if b.Prices != nil {
		s, err = b.Reports.PortfolioSummaryLive(ctx, user, b.Prices)
	} else {
		s, err = b.Reports.PortfolioSummary(ctx, user, nil)
	}
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: renderPortfolio(s, b.Currency)}, nil
}

func (b *Bot) categories(ctx context.Context, user domain.UserID) (Reply, error) {
	cats, err := b.Ledger.EnsureDefaults(ctx, user)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: renderCategories(cats)}, nil
}

func (b *Bot) export(ctx context.Context, user domain.UserID) (Reply, error) {
	data, err := b.Exporter.YAML(ctx, user)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Text:     "📦 Your data",
		File:     data,
		FileName: fmt.Sprintf("finance-%s.yaml", b.now().Format("2006-01-02")),
	}, nil
}

// describe turns a core error into a corrective message.
func describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "❌ Invalid amount. Use a positive number such as 150,50."
	case errors.Is(err, domain.ErrInsufficientHolding):
		return "❌ You cannot sell more than you hold."
	case errors.Is(err, domain.ErrCategoryMismatch):
		return "❌ That category belongs to the other kind of transaction."
	case errors.Is(err, domain.ErrCategoryInUse):
		return "❌ The category still has transactions. Move them to another category first."
	case errors.Is(err, domain.ErrNotFound):
		return "❌ " + esc(detail(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrInvalidInput):
		return "❌ " + esc(detail(err, domain.ErrInvalidInput))
	case domain.IsRetryable(err):
		slog.Error("storage failure", "error", err)
		return "⚠️ Could not save right now. Please try again in a moment."
	}
	slog.Error("unexpected error", "error", err)
	return "⚠️ Something went wrong."
}

// detail returns what follows the sentinel in err's message, or the
// sentinel's own text when nothing does.
func detail(err, sentinel error) string {
	if _, after, ok := strings.Cut(err.Error(), sentinel.Error()+": "); ok {
		return after
	}
	return sentinel.Error()
}

func filterKind(cats []domain.Category, kind domain.Kind) []domain.Category {
	var out []domain.Category
	for _, c := range cats {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// splitCommand returns "/cmd" and its argument, dropping a "@botname" suffix.
// Plain text yields an empty command.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, arg, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// sanitize folds every kind of whitespace into single spaces.
func sanitize(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// fixEncoding repairs text some clients send in windows-1252 instead of UTF-8.
func fixEncoding(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	if fixed, err := charmap.Windows1252.NewDecoder().String(s); err == nil && utf8.ValidString(fixed) {
		return fixed
	}
	return strings.ToValidUTF8(s, "")
}
