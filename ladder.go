package discipline

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TakeProfit is one tier of a take-profit ladder: sell SizePct of the position
// once the gain reaches PctGain.
type TakeProfit struct {
	ID      string  `json:"id"`
	PctGain Percent `json:"pct_gain"`
	SizePct Percent `json:"size_pct"`
}

// ladderSeparator separates tiers in a ladder string like "8% / 15%".
const ladderSeparator = "/"

// defaultTakeProfit is the single tier used when no ladder is given.
var defaultTakeProfit = TakeProfit{ID: "TP1", PctGain: 0.08, SizePct: 1}

// ParseTakeProfitLadder parses paired ladders of gains ("8% / 15%") and sizes
// ("50% / 50%") into tiers TP1, TP2, ...
//
// The gain ladder decides the number of tiers. Unparsable gains fall back to
// an ascending default (8%, 15%, 22%...). Sizes are aligned by index, a
// missing or unparsable size is an equal share of the position.
func ParseTakeProfitLadder(pctLadder, sizeLadder string) []TakeProfit {
	var gains []string
	for _, seg := range strings.Split(pctLadder, ladderSeparator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			gains = append(gains, seg)
		}
	}
	if len(gains) == 0 {
		return []TakeProfit{defaultTakeProfit}
	}

	// sizes keep their position, an empty segment is a missing size.
	var sizes []string
	if strings.TrimSpace(sizeLadder) != "" {
		for _, seg := range strings.Split(sizeLadder, ladderSeparator) {
			sizes = append(sizes, strings.TrimSpace(seg))
		}
	}

	share := Percent(1 / float64(len(gains)))
	tiers := make([]TakeProfit, 0, len(gains))
	for i, g := range gains {
		size := share
		if i < len(sizes) && sizes[i] != "" {
			size = ParsePercent(sizes[i], share)
		}
		tiers = append(tiers, TakeProfit{
			ID:      fmt.Sprintf("TP%d", i+1),
			PctGain: ParsePercent(g, defaultGain(i)),
			SizePct: size,
		})
	}
	return tiers
}

// defaultGain is the fallback gain of the i-th tier: 8%, 15%, 22%...
func defaultGain(i int) Percent {
	base, step := decimal.NewFromFloat(0.08), decimal.NewFromFloat(0.07)
	return Percent(base.Add(step.Mul(decimal.NewFromInt(int64(i)))).InexactFloat64())
}

// FormatTakeProfitLadder is the reverse of ParseTakeProfitLadder.
func FormatTakeProfitLadder(tiers []TakeProfit) (pctLadder, sizeLadder string) {
	gains := make([]string, len(tiers))
	sizes := make([]string, len(tiers))
	for i, tp := range tiers {
		gains[i] = tp.PctGain.String()
		sizes[i] = tp.SizePct.String()
	}
	sep := " " + ladderSeparator + " "
	return strings.Join(gains, sep), strings.Join(sizes, sep)
}
