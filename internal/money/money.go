// internal/money/money.go
package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a value cannot be parsed as a finite decimal
// or is not positive where a positive value is required.
var ErrInvalidAmount = errors.New("invalid amount")

// Scales used across the tracker.
const (
	CurrencyScale int32 = 2
	PriceScale    int32 = 8
	QuantityScale int32 = 8
)

// Amount is an exact decimal value. Arithmetic never rounds: rounding happens
// only in Round, Div and when formatting.
type Amount struct {
	d decimal.Decimal
}

var Zero = Amount{}

// Parse reads a plain decimal string such as "150.50" or "-3".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Amount{d: d}, nil
}

// ParsePositive is Parse that also rejects zero and negative values.
func ParsePositive(s string) (Amount, error) {
	a, err := Parse(s)
	if err != nil {
		return Zero, err
	}
	if !a.IsPositive() {
		return Zero, fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, a)
	}
	return a, nil
}

// ParseLocalized accepts user-typed amounts: "1.234,56", "1,234.56", "150,50",
// "R$ 10". A lone comma followed by at most two digits is a decimal separator.
func ParseLocalized(s string) (Amount, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		}
		return -1
	}, s)

	dot := strings.LastIndex(cleaned, ".")
	comma := strings.LastIndex(cleaned, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case comma >= 0:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = parts[0] + "." + parts[1]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}
	if strings.Count(cleaned, ".") > 1 {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return Parse(cleaned)
}

// FromMinor builds an amount from integer minor units at the given scale,
// e.g. FromMinor(15050, 2) is 150.50.
func FromMinor(units int64, scale int32) Amount {
	return Amount{d: decimal.New(units, -scale)}
}

func FromInt(v int64) Amount                 { return Amount{d: decimal.NewFromInt(v)} }
func FromDecimal(d decimal.Decimal) Amount   { return Amount{d: d} }
func (a Amount) Decimal() decimal.Decimal    { return a.d }
func (a Amount) Add(b Amount) Amount         { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount         { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Mul(b Amount) Amount         { return Amount{d: a.d.Mul(b.d)} }
func (a Amount) MulInt(n int64) Amount       { return Amount{d: a.d.Mul(decimal.NewFromInt(n))} }
func (a Amount) Neg() Amount                 { return Amount{d: a.d.Neg()} }
func (a Amount) Abs() Amount                 { return Amount{d: a.d.Abs()} }
func (a Amount) Cmp(b Amount) int            { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool         { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool      { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool   { return a.d.GreaterThan(b.d) }
func (a Amount) IsZero() bool                { return a.d.IsZero() }
func (a Amount) IsPositive() bool            { return a.d.IsPositive() }
func (a Amount) IsNegative() bool            { return a.d.IsNegative() }
func (a Amount) Sign() int                   { return a.d.Sign() }
func (a Amount) String() string              { return a.d.String() }

// StringFixed formats with exactly scale fractional digits, rounding half-up.
func (a Amount) StringFixed(scale int32) string { return a.d.StringFixed(scale) }

// Round rounds half-up (away from zero) to scale fractional digits.
func (a Amount) Round(scale int32) Amount { return Amount{d: a.d.Round(scale)} }

// Truncate drops digits beyond scale without rounding.
func (a Amount) Truncate(scale int32) Amount { return Amount{d: a.d.Truncate(scale)} }

// Div divides and rounds the quotient half-up to scale digits.
// It panics on a zero divisor, callers check first.
func (a Amount) Div(b Amount, scale int32) Amount {
	return Amount{d: a.d.DivRound(b.d, scale)}
}

// MinorUnits returns the value as an integer count of minor units at scale,
// rounding half-up.
func (a Amount) MinorUnits(scale int32) int64 {
	return a.d.Shift(scale).Round(0).IntPart()
}

// FitsScale reports whether the value has no more than scale fractional digits.
func (a Amount) FitsScale(scale int32) bool {
	return a.d.Equal(a.d.Truncate(scale))
}

// Sum adds all values.
func Sum(values ...Amount) Amount {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Format renders the amount in the currency's display format, e.g. "R$1.234,56"
// for BRL. Unknown codes fall back to the code followed by the value.
func Format(a Amount, currency string) string {
	cur := gomoney.GetCurrency(currency)
	if cur == nil {
		return currency + " " + a.StringFixed(CurrencyScale)
	}
	minor := a.MinorUnits(int32(cur.Fraction))
	return cur.Formatter().Format(minor)
}

func (a Amount) MarshalJSON() ([]byte, error) { return a.d.MarshalJSON() }

func (a *Amount) UnmarshalJSON(b []byte) error {
	if err := a.d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, err)
	}
	return nil
}

func (a Amount) MarshalText() ([]byte, error) { return []byte(a.d.String()), nil }

func (a *Amount) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value implements driver.Valuer so amounts can be bound to NUMERIC columns.
func (a Amount) Value() (driver.Value, error) { return a.d.String(), nil }

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src any) error { return a.d.Scan(src) }
