// Package session collects the fields of a multi-step chat command one
// message at a time. A Session only ever hands complete, parsed values to the
// ledger and position services.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/money"
	"finance-tracker/internal/position"
	val "finance-tracker/internal/validator"
)

type Flow string

const (
	RecordExpense Flow = "expense"
	RecordIncome  Flow = "income"
	BuyAsset      Flow = "buy"
	SellAsset     Flow = "sell"
)

type Step string

const (
	StepAmount      Step = "amount"
	StepCategory    Step = "category"
	StepDescription Step = "description"
	StepPayment     Step = "payment"
	StepDate        Step = "date"
	StepTicker      Step = "ticker"
	StepAssetType   Step = "asset_type"
	StepQuantity    Step = "quantity"
	StepPrice       Step = "price"
	StepDone        Step = "done"
)

var flows = map[Flow][]Step{
	RecordExpense: {StepAmount, StepCategory, StepDescription, StepPayment, StepDate},
	RecordIncome:  {StepAmount, StepCategory, StepDescription, StepPayment, StepDate},
	BuyAsset:      {StepTicker, StepAssetType, StepQuantity, StepPrice, StepDate},
	SellAsset:     {StepTicker, StepQuantity, StepPrice, StepDate},
}

// PaymentMethods are offered as numbered shortcuts; free text is accepted too.
var PaymentMethods = []string{"pix", "credit card", "debit card", "cash", "transfer"}

// AssetTypes in the order they are offered.
var AssetTypes = []domain.AssetType{domain.Equity, domain.Fund, domain.ETF, domain.Crypto, domain.FixedIncome}

type Session struct {
	Flow Flow
	Step Step

	// Categories offered at StepCategory, already filtered to the flow's kind.
	Categories []domain.Category

	Amount        money.Amount
	Category      domain.Category
	Description   string
	PaymentMethod string
	Date          time.Time
	Ticker        string
	AssetType     domain.AssetType
	Quantity      money.Amount
	Price         money.Amount
}

// New starts flow. categories is only used by the expense and income flows.
func New(flow Flow, categories []domain.Category) (*Session, error) {
	steps, ok := flows[flow]
	if !ok {
		return nil, fmt.Errorf("%w: unknown flow %q", domain.ErrInvalidInput, flow)
	}
	s := &Session{Flow: flow, Step: steps[0]}
	if kind, ok := flow.Kind(); ok {
		for _, c := range categories {
			if c.Kind == kind {
				s.Categories = append(s.Categories, c)
			}
		}
		if len(s.Categories) == 0 {
			return nil, fmt.Errorf("%w: no %s categories", domain.ErrNotFound, kind)
		}
	}
	return s, nil
}

// Kind is the transaction kind recorded by a ledger flow.
func (f Flow) Kind() (domain.Kind, bool) {
	switch f {
	case RecordExpense:
		return domain.Expense, true
	case RecordIncome:
		return domain.Income, true
	}
	return "", false
}

func (s *Session) Done() bool { return s.Step == StepDone }

// Advance consumes one message for the current step. On error the step is
// unchanged so the same question can be asked again.
func (s *Session) Advance(input string, now time.Time) error {
	input = strings.TrimSpace(input)
	var err error
	switch s.Step {
	case StepAmount:
		s.Amount, err = positive(input)
	case StepCategory:
		s.Category, err = pickCategory(s.Categories, input)
	case StepDescription:
		s.Description, err = description(input, s.Category.Name)
	case StepPayment:
		s.PaymentMethod, err = pick(PaymentMethods, input, "payment method", true)
	case StepDate:
		s.Date, err = ParseDate(input, now)
	case StepTicker:
		s.Ticker, err = ticker(input)
	case StepAssetType:
		var t string
		t, err = pick(assetTypeNames(), input, "asset type", false)
		s.AssetType = domain.AssetType(t)
	case StepQuantity:
		s.Quantity, err = positive(input)
	case StepPrice:
		s.Price, err = positive(input)
	default:
		return fmt.Errorf("%w: nothing left to fill in", domain.ErrInvalidInput)
	}
	if err != nil {
		return err
	}
	s.Step = s.next()
	return nil
}

func (s *Session) next() Step {
	steps := flows[s.Flow]
	for i, st := range steps {
		if st == s.Step && i+1 < len(steps) {
			return steps[i+1]
		}
	}
	return StepDone
}

// Entry is the ledger input collected by an expense or income flow.
func (s *Session) Entry() ledger.Entry {
	kind, _ := s.Flow.Kind()
	return ledger.Entry{
		Kind:          kind,
		Amount:        s.Amount,
		CategoryID:    s.Category.ID,
		PaymentMethod: s.PaymentMethod,
		OccurredOn:    s.Date,
		Description:   s.Description,
	}
}

func (s *Session) Buy() position.BuyInput {
	return position.BuyInput{Ticker: s.Ticker, AssetType: s.AssetType, Quantity: s.Quantity, UnitPrice: s.Price, OccurredOn: s.Date}
}

func (s *Session) Sell() position.SellInput {
	return position.SellInput{Ticker: s.Ticker, Quantity: s.Quantity, UnitPrice: s.Price, OccurredOn: s.Date}
}

func positive(input string) (money.Amount, error) {
	a, err := money.ParseLocalized(input)
	if err != nil {
		return money.Zero, err
	}
	if !a.IsPositive() {
		return money.Zero, fmt.Errorf("%w: must be greater than zero", domain.ErrInvalidAmount)
	}
	return a, nil
}

func pickCategory(cats []domain.Category, input string) (domain.Category, error) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(cats) {
			return cats[n-1], nil
		}
		return domain.Category{}, fmt.Errorf("%w: pick a number from 1 to %d", domain.ErrInvalidInput, len(cats))
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, input) {
			return c, nil
		}
	}
	return domain.Category{}, fmt.Errorf("%w: unknown category %q", domain.ErrNotFound, input)
}

// pick resolves a 1-based index or an option name. With free set, any other
// non-blank text is taken as is.
func pick(options []string, input, what string, free bool) (string, error) {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		return "", fmt.Errorf("%w: pick a number from 1 to %d", domain.ErrInvalidInput, len(options))
	}
	for _, o := range options {
		if strings.EqualFold(o, input) {
			return o, nil
		}
	}
	if free && input != "" {
		return strings.ToLower(input), nil
	}
	return "", fmt.Errorf("%w: unknown %s %q", domain.ErrInvalidInput, what, input)
}

// description accepts "-" as "use the category name".
func description(input, fallback string) (string, error) {
	if input == "-" {
		input = fallback
	}
	if input == "" {
		return "", fmt.Errorf("%w: description must not be blank", domain.ErrInvalidInput)
	}
	return input, nil
}

func ticker(input string) (string, error) {
	t := position.NormalizeTicker(input)
	if err := val.Validate.Var(t, "ticker"); err != nil {
		return "", fmt.Errorf("%w: %q is not a ticker", domain.ErrInvalidInput, input)
	}
	return t, nil
}

func assetTypeNames() []string {
	out := make([]string, len(AssetTypes))
	for i, t := range AssetTypes {
		out[i] = string(t)
	}
	return out
}

// ParseDate understands "today", "yesterday" (also in Portuguese), DD/MM/YYYY
// and YYYY-MM-DD.
func ParseDate(input string, now time.Time) (time.Time, error) {
	switch strings.ToLower(input) {
	case "", "today", "hoje":
		return domain.Date(now), nil
	case "yesterday", "ontem":
		return domain.Date(now.AddDate(0, 0, -1)), nil
	}
	for _, layout := range []string{"02/01/2006", "2/1/2006", time.DateOnly} {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q, use DD/MM/YYYY", domain.ErrInvalidInput, input)
}
