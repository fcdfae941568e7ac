package discipline

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Percent is a percentage stored as a fraction: 0.08 is 8%.
//
// It always crosses the wire as a fraction in [0,1].
type Percent float64

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ParsePercent reads a percent-like string such as "8%", "8" or "0.08".
//
// A trailing "%" is ignored. A value greater than 1 is taken as already
// expressed in percent and divided by 100, otherwise it is already a
// fraction. Any unparsable input returns fallback.
func ParsePercent(raw string, fallback Percent) Percent {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	if d.GreaterThan(one) {
		d = d.Div(hundred)
	}
	return Percent(d.InexactFloat64())
}

// Equal reports whether p and q are the same percent, to a hundredth of a
// percent.
func (p Percent) Equal(q Percent) bool {
	// it has to be compared with some precision
	const precision = 0.0001
	diff := p - q
	if diff < 0 {
		diff = -diff
	}
	return diff < precision
}

// String formats p as a percentage: "8%" when integral, "8.25%" otherwise.
func (p Percent) String() string {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "-"
	}
	// decimal keeps 0.07 as 7 where float arithmetic gives 7.000000000000001
	d := decimal.NewFromFloat(f).Mul(hundred)
	if d.IsInteger() {
		return d.String() + "%"
	}
	return d.StringFixed(2) + "%"
}

// SignedString is like String with an explicit sign, and "-" for zero.
func (p Percent) SignedString() string {
	if p == 0 {
		return "-"
	}
	if p > 0 {
		return "+" + p.String()
	}
	return p.String()
}
