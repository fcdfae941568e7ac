package discipline

import (
	"bytes"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Price is an optional unit price, in the stock's currency.
//
// Its zero value is the absent price, it crosses the wire as a JSON number or
// null.
type Price struct {
	value decimal.Decimal
	valid bool
}

// NewPrice returns a present price.
func NewPrice(value decimal.Decimal) Price { return Price{value: value, valid: true} }

// P is a shortcut to NewPrice for float values, mostly used in tests.
func P(value float64) Price { return NewPrice(decimal.NewFromFloat(value)) }

// ParsePrice reads a price, an empty string is the absent price.
func ParsePrice(s string) (Price, error) {
	if s == "" {
		return Price{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return NewPrice(d), nil
}

// IsSet reports whether the price is present.
func (p Price) IsSet() bool { return p.valid }

// Decimal returns the price value, and whether it is present.
func (p Price) Decimal() (decimal.Decimal, bool) { return p.value, p.valid }

// Equal reports whether p and q are both absent or have the same value.
func (p Price) Equal(q Price) bool {
	if !p.valid || !q.valid {
		return p.valid == q.valid
	}
	return p.value.Equal(q.value)
}

// String returns the plain decimal value, or "-" if absent.
func (p Price) String() string {
	if !p.valid {
		return "-"
	}
	return p.value.String()
}

// Format returns the price formatted in currency ("$123.45"), or "-" if absent.
func (p Price) Format(currency string) string {
	if !p.valid {
		return "-"
	}
	if currency == "" {
		currency = money.USD
	}
	// to get a never nil currency I need to call the Money constructor
	cur := *money.New(0, currency).Currency()
	minor := p.value.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.valid {
		return []byte("null"), nil
	}
	return []byte(p.value.String()), nil
}

// UnmarshalJSON accepts numbers, numeric strings and null.
func (p *Price) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Price{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid price %s: %w", data, err)
	}
	*p = NewPrice(d)
	return nil
}
