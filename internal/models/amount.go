package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// wireScale is the number of fractional digits every amount carries on the
// wire. The gateway serializes amounts as decimal strings to avoid
// floating-point drift across the boundary.
const wireScale = 8

// Amount is a fixed-point monetary value. It marshals as a JSON string with
// exactly eight fractional digits.
type Amount struct {
	d decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// AmountFromString parses a decimal string such as "10.50000000".
func AmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

func AmountFromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

func (a Amount) Positive() bool {
	return a.d.IsPositive()
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// String renders the amount with the fixed wire scale.
func (a Amount) String() string {
	return a.d.StringFixed(wireScale)
}

func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		a.d = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.d = d
	return nil
}
