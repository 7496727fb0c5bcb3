// Package export renders a user's ledger and portfolio as a YAML document.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"
)

type Document struct {
	GeneratedAt  string        `yaml:"generated_at"`
	Currency     string        `yaml:"currency"`
	Categories   []categoryRow `yaml:"categories"`
	Transactions []txRow       `yaml:"transactions"`
	Positions    []positionRow `yaml:"positions"`
	Lots         []lotRow      `yaml:"lots"`
}

type categoryRow struct {
	ID      int64  `yaml:"id"`
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Default bool   `yaml:"default,omitempty"`
}

type txRow struct {
	ID            int64  `yaml:"id"`
	Date          string `yaml:"date"`
	Kind          string `yaml:"kind"`
	Amount        string `yaml:"amount"`
	Category      string `yaml:"category"`
	PaymentMethod string `yaml:"payment_method"`
	Description   string `yaml:"description"`
	Notes         string `yaml:"notes,omitempty"`
}

type positionRow struct {
	Ticker      string `yaml:"ticker"`
	AssetType   string `yaml:"asset_type"`
	Quantity    string `yaml:"quantity"`
	AverageCost string `yaml:"average_cost"`
}

type lotRow struct {
	Date         string `yaml:"date"`
	Ticker       string `yaml:"ticker"`
	Side         string `yaml:"side"`
	Quantity     string `yaml:"quantity"`
	UnitPrice    string `yaml:"unit_price"`
	RealizedGain string `yaml:"realized_gain,omitempty"`
}

type Exporter struct {
	store    storage.Store
	currency string
	scale    int32
	now      func() time.Time
}

func New(store storage.Store, currency string, currencyScale int32) *Exporter {
	return &Exporter{store: store, currency: currency, scale: currencyScale, now: time.Now}
}

// Build reads everything the user owns from one consistent snapshot.
func (e *Exporter) Build(ctx context.Context, user domain.UserID) (Document, error) {
	doc := Document{GeneratedAt: e.now().UTC().Format(time.RFC3339), Currency: e.currency}
	err := e.store.View(ctx, user, func(tx storage.Tx) error {
		cats, err := tx.ListCategories(ctx, "")
		if err != nil {
			return err
		}
		names := make(map[int64]string, len(cats))
		for _, c := range cats {
			names[c.ID] = c.Name
			doc.Categories = append(doc.Categories, categoryRow{ID: c.ID, Name: c.Name, Kind: string(c.Kind), Default: c.IsDefault})
		}

		txs, err := tx.ListTransactions(ctx, storage.TransactionFilter{})
		if err != nil {
			return err
		}
		for _, t := range txs {
			doc.Transactions = append(doc.Transactions, txRow{
				ID:            t.ID,
				Date:          t.OccurredOn.Format(time.DateOnly),
				Kind:          string(t.Kind),
				Amount:        t.Amount.StringFixed(e.scale),
				Category:      names[t.CategoryID],
				PaymentMethod: t.PaymentMethod,
				Description:   t.Description,
				Notes:         t.Notes,
			})
		}

		positions, err := tx.ListPositions(ctx)
		if err != nil {
			return err
		}
		for _, p := range positions {
			doc.Positions = append(doc.Positions, positionRow{
				Ticker:      p.Ticker,
				AssetType:   string(p.AssetType),
				Quantity:    p.Quantity.String(),
				AverageCost: p.AverageCost.String(),
			})
		}

		lots, err := tx.ListLots(ctx, "")
		if err != nil {
			return err
		}
		for _, l := range lots {
			row := lotRow{
				Date:      l.OccurredOn.Format(time.DateOnly),
				Ticker:    l.Ticker,
				Side:      string(l.Side),
				Quantity:  l.Quantity.String(),
				UnitPrice: l.UnitPrice.String(),
			}
			if l.Side == domain.Sell {
				row.RealizedGain = l.RealizedGain.StringFixed(e.scale)
			}
			doc.Lots = append(doc.Lots, row)
		}
		return nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("export: %w", err)
	}
	return doc, nil
}

// YAML builds the document and encodes it.
func (e *Exporter) YAML(ctx context.Context, user domain.UserID) ([]byte, error) {
	doc, err := e.Build(ctx, user)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("export: encode yaml: %w", err)
	}
	return out, nil
}
