// Package ledger records income and expense transactions and manages the
// categories they are grouped by.
package ledger

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
	val "finance-tracker/internal/validator"
)

// Invalidator is told which dates a committed write touched. No dates means
// every cached window of the user is stale.
type Invalidator interface {
	Invalidate(user domain.UserID, dates ...time.Time)
}

type Config struct {
	MinAmount            money.Amount
	MaxAmount            money.Amount
	CurrencyScale        int32
	MaxDescriptionLength int
	MaxCategoriesPerUser int
	BackdateTolerance    time.Duration
	FutureTolerance      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinAmount:            money.FromMinor(1, 2),
		MaxAmount:            money.FromInt(1_000_000),
		CurrencyScale:        money.CurrencyScale,
		MaxDescriptionLength: 255,
		MaxCategoriesPerUser: 50,
		BackdateTolerance:    10 * 365 * 24 * time.Hour,
	}
}

type Service struct {
	store storage.Store
	cfg   Config
	inv   Invalidator
	now   func() time.Time
}

func New(store storage.Store, cfg Config, inv Invalidator) *Service {
	return &Service{store: store, cfg: cfg, inv: inv, now: time.Now}
}

// WithClock replaces the clock used for backdating checks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Entry carries the user-supplied fields of a transaction.
type Entry struct {
	Kind          domain.Kind `validate:"required,kind"`
	Amount        money.Amount
	CategoryID    int64     `validate:"required,gt=0"`
	PaymentMethod string    `validate:"required,notblank,max=50"`
	OccurredOn    time.Time `validate:"required"`
	Description   string    `validate:"required,notblank"`
	Notes         string    `validate:"max=1000"`
}

// Patch lists the fields to change on Edit. Nil fields are kept.
type Patch struct {
	Kind          *domain.Kind
	Amount        *money.Amount
	CategoryID    *int64
	PaymentMethod *string
	OccurredOn    *time.Time
	Description   *string
	Notes         *string
}

func (s *Service) Record(ctx context.Context, user domain.UserID, e Entry) (domain.Transaction, error) {
	if err := s.validateEntry(&e); err != nil {
		return domain.Transaction{}, err
	}

	var saved domain.Transaction
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		if err := checkCategory(ctx, tx, e.CategoryID, e.Kind); err != nil {
			return err
		}
		var err error
		saved, err = tx.UpsertTransaction(ctx, domain.Transaction{
			Kind:          e.Kind,
			Amount:        e.Amount,
			CategoryID:    e.CategoryID,
			PaymentMethod: e.PaymentMethod,
			OccurredOn:    e.OccurredOn,
			Description:   e.Description,
			Notes:         e.Notes,
		})
		return err
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}

	s.invalidate(user, saved.OccurredOn)
	slog.Info("transaction recorded", "user_id", user, "id", saved.ID, "kind", saved.Kind, "amount", saved.Amount.String())
	return saved, nil
}

func (s *Service) Edit(ctx context.Context, user domain.UserID, id int64, p Patch) (domain.Transaction, error) {
	var before, saved domain.Transaction
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		var err error
		before, err = tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}

		e := entryOf(before)
		p.apply(&e)
		if err := s.validateEntry(&e); err != nil {
			return err
		}
		if err := checkCategory(ctx, tx, e.CategoryID, e.Kind); err != nil {
			return err
		}

		next := before
		next.Kind = e.Kind
		next.Amount = e.Amount
		next.CategoryID = e.CategoryID
		next.PaymentMethod = e.PaymentMethod
		next.OccurredOn = e.OccurredOn
		next.Description = e.Description
		next.Notes = e.Notes
		saved, err = tx.UpsertTransaction(ctx, next)
		return err
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("edit transaction %d: %w", id, err)
	}

	s.invalidate(user, before.OccurredOn, saved.OccurredOn)
	slog.Info("transaction edited", "user_id", user, "id", id)
	return saved, nil
}

func (s *Service) Delete(ctx context.Context, user domain.UserID, id int64) error {
	var removed domain.Transaction
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		var err error
		removed, err = tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.invalidate(user, removed.OccurredOn)
	slog.Info("transaction deleted", "user_id", user, "id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, user domain.UserID, id int64) (domain.Transaction, error) {
	var tr domain.Transaction
	err := s.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		tr, err = tx.GetTransaction(ctx, id)
		return err
	})
	return tr, err
}

// Filter narrows List. To is exclusive; zero values match everything.
type Filter struct {
	From          time.Time
	To            time.Time
	Kind          domain.Kind
	CategoryID    int64
	PaymentMethod string
	// Offset skips that many matching transactions first.
	Offset int
	// Limit caps the number of yielded transactions; 0 means no cap.
	Limit int
}

const pageSize = 100

// List yields the user's transactions newest first (occurred_on desc, then id
// desc), fetching pages lazily with a keyset cursor so concurrent inserts never
// duplicate or skip entries already behind the cursor.
func (s *Service) List(ctx context.Context, user domain.UserID, f Filter) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		var (
			cursor  *storage.Cursor
			yielded int
			skip    = f.Offset
		)
		for {
			limit := pageSize
			if f.Limit > 0 && f.Limit-yielded+skip < limit {
				limit = f.Limit - yielded + skip
			}
			var page []domain.Transaction
			err := s.store.View(ctx, user, func(tx storage.Tx) error {
				var err error
				page, err = tx.ListTransactions(ctx, storage.TransactionFilter{
					From:          f.From,
					To:            f.To,
					Kind:          f.Kind,
					CategoryID:    f.CategoryID,
					PaymentMethod: f.PaymentMethod,
					After:         cursor,
					Limit:         limit,
				})
				return err
			})
			if err != nil {
				yield(domain.Transaction{}, fmt.Errorf("list transactions: %w", err))
				return
			}
			for _, tr := range page {
				if skip > 0 {
					skip--
					continue
				}
				if !yield(tr, nil) {
					return
				}
				yielded++
			}
			if len(page) < limit || (f.Limit > 0 && yielded >= f.Limit) {
				return
			}
			last := page[len(page)-1]
			cursor = &storage.Cursor{OccurredOn: last.OccurredOn, ID: last.ID}
		}
	}
}

// Collect drains List into a slice.
func (s *Service) Collect(ctx context.Context, user domain.UserID, f Filter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for tr, err := range s.List(ctx, user, f) {
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, nil
}

func (s *Service) validateEntry(e *Entry) error {
	e.Description = strings.TrimSpace(e.Description)
	e.PaymentMethod = strings.TrimSpace(e.PaymentMethod)
	if err := val.Check(e); err != nil {
		return err
	}

	if !e.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrInvalidAmount)
	}
	if !e.Amount.FitsScale(s.cfg.CurrencyScale) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", domain.ErrInvalidAmount, e.Amount, s.cfg.CurrencyScale)
	}
	if e.Amount.LessThan(s.cfg.MinAmount) {
		return fmt.Errorf("%w: minimum amount is %s", domain.ErrInvalidAmount, s.cfg.MinAmount)
	}
	if s.cfg.MaxAmount.IsPositive() && e.Amount.GreaterThan(s.cfg.MaxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", domain.ErrInvalidAmount, s.cfg.MaxAmount)
	}

	e.OccurredOn = domain.Date(e.OccurredOn)
	if err := checkDate(e.OccurredOn, s.now(), s.cfg.BackdateTolerance, s.cfg.FutureTolerance); err != nil {
		return err
	}

	if limit := s.cfg.MaxDescriptionLength; limit > 0 && utf8.RuneCountInString(e.Description) > limit {
		e.Description = string([]rune(e.Description)[:limit])
	}
	return nil
}

// checkDate accepts dates from today-backdate up to today+future, inclusive.
func checkDate(day, now time.Time, backdate, future time.Duration) error {
	today := domain.Date(now)
	if day.After(today.Add(future)) {
		return fmt.Errorf("%w: date %s is in the future", domain.ErrInvalidInput, day.Format(time.DateOnly))
	}
	if backdate > 0 && day.Before(domain.Date(today.Add(-backdate))) {
		return fmt.Errorf("%w: date %s is too far in the past", domain.ErrInvalidInput, day.Format(time.DateOnly))
	}
	return nil
}

func checkCategory(ctx context.Context, tx storage.Tx, id int64, kind domain.Kind) error {
	c, err := tx.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if c.Kind != kind {
		return fmt.Errorf("%w: %q is an %s category", domain.ErrCategoryMismatch, c.Name, c.Kind)
	}
	return nil
}

func entryOf(t domain.Transaction) Entry {
	return Entry{
		Kind:          t.Kind,
		Amount:        t.Amount,
		CategoryID:    t.CategoryID,
		PaymentMethod: t.PaymentMethod,
		OccurredOn:    t.OccurredOn,
		Description:   t.Description,
		Notes:         t.Notes,
	}
}

func (p Patch) apply(e *Entry) {
	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.PaymentMethod != nil {
		e.PaymentMethod = *p.PaymentMethod
	}
	if p.OccurredOn != nil {
		e.OccurredOn = *p.OccurredOn
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
}

func (s *Service) invalidate(user domain.UserID, dates ...time.Time) {
	if s.inv != nil {
		s.inv.Invalidate(user, dates...)
	}
}
