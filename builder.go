package discipline

import (
	"math"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// Form is the human editable projection of a RuleDocument.
//
// Percent fields hold display strings ("8%", "0.08", "8% / 15%"), they are
// read with ParsePercent and ParseTakeProfitLadder.
type Form struct {
	StrategyType          string
	MaxHoldingDays        string
	CooldownDays          string
	TargetPct             string
	MaxPct                string
	EntryRule             string
	StopLoss              string
	TakeProfit            string
	TakeProfitSize        string
	TrailingStop          string
	EarningsBlockDays     string
	ConfirmationDelaySec  string
	RequireOverrideReason bool
}

// Fallbacks used by FormToDocument when a field cannot be read.
const (
	defaultMaxHoldingDays       = 60
	defaultCooldownDays         = 10
	defaultTargetPct            = Percent(0.10)
	defaultMaxPct               = Percent(0.15)
	defaultStopLoss             = Percent(0.08)
	defaultTrailingStop         = Percent(0.06)
	defaultEarningsBlockDays    = 3
	defaultConfirmationDelaySec = 60
	defaultEntryRule            = "Close crossover SMA(20)"
)

// DefaultForm returns the form of a brand new rule plan.
func DefaultForm() Form {
	return Form{
		StrategyType:          Swing.Title(),
		MaxHoldingDays:        strconv.Itoa(defaultMaxHoldingDays),
		CooldownDays:          strconv.Itoa(defaultCooldownDays),
		TargetPct:             defaultTargetPct.String(),
		MaxPct:                defaultMaxPct.String(),
		EntryRule:             defaultEntryRule,
		StopLoss:              defaultStopLoss.String(),
		TakeProfit:            "8% / 15%",
		TakeProfitSize:        "",
		TrailingStop:          defaultTrailingStop.String(),
		EarningsBlockDays:     strconv.Itoa(defaultEarningsBlockDays),
		ConfirmationDelaySec:  strconv.Itoa(defaultConfirmationDelaySec),
		RequireOverrideReason: true,
	}
}

// parseInt reads an integer field, or returns fallback.
func parseInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

// FormToDocument builds a complete, schema valid, RuleDocument out of f.
//
// It never fails: every unreadable field gets its default value. Policy
// fields (indicators, account and strategy risk tiers...) are always injected.
func FormToDocument(f Form) RuleDocument {
	maxHolding := parseInt(f.MaxHoldingDays, defaultMaxHoldingDays)
	maxPct := ParsePercent(f.MaxPct, defaultMaxPct)
	entry := strings.TrimSpace(f.EntryRule)
	if entry == "" {
		entry = defaultEntryRule
	}

	return RuleDocument{
		SchemaVersion:   SchemaVersion,
		StrategyType:    ParseStrategyType(f.StrategyType),
		IndicatorPolicy: DefaultIndicatorPolicy(),
		Indicators:      DefaultIndicators(),
		PositionIntent: PositionIntent{
			MaxHoldingDays:        maxHolding,
			CooldownDaysAfterExit: parseInt(f.CooldownDays, defaultCooldownDays),
		},
		PositionSizing: PositionSizing{
			TargetPct: ParsePercent(f.TargetPct, defaultTargetPct),
			MaxPct:    maxPct,
		},
		EntryRules: []EntryRule{
			{ID: "E1", Priority: 1, SizePct: 1, ConditionExpr: entry},
		},
		ExitRules: ExitRules{
			HardStop:     Stop{Type: HardStopType, Value: ParsePercent(f.StopLoss, defaultStopLoss)},
			TakeProfits:  ParseTakeProfitLadder(f.TakeProfit, f.TakeProfitSize),
			TrailingStop: Stop{Type: TrailingStopType, Value: ParsePercent(f.TrailingStop, defaultTrailingStop)},
			TimeStop:     TimeStop{MaxHoldingDays: maxHolding},
		},
		RiskRules: RiskRules{
			Account:  DefaultAccountRisk(),
			Strategy: DefaultStrategyRisk(),
			Ticker: TickerRisk{
				MaxPositionPct:          maxPct,
				MaxLossPerTicker:        DefaultMaxLossPerTicker,
				Blacklist:               []string{},
				EarningsWindowBlockDays: parseInt(f.EarningsBlockDays, defaultEarningsBlockDays),
			},
		},
		BehaviorControls: BehaviorControls{
			ConfirmationDelaySec:  parseInt(f.ConfirmationDelaySec, defaultConfirmationDelaySec),
			RequireOverrideReason: f.RequireOverrideReason,
			DailyActionLimit:      DailyActionLimit,
		},
	}
}

// FormPatch is a partial Form: nil fields are left untouched by Apply.
type FormPatch struct {
	StrategyType          *string
	MaxHoldingDays        *string
	CooldownDays          *string
	TargetPct             *string
	MaxPct                *string
	EntryRule             *string
	StopLoss              *string
	TakeProfit            *string
	TakeProfitSize        *string
	TrailingStop          *string
	EarningsBlockDays     *string
	ConfirmationDelaySec  *string
	RequireOverrideReason *bool
}

// Apply returns a copy of f with every field set in p.
func (p FormPatch) Apply(f Form) Form {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&f.StrategyType, p.StrategyType)
	set(&f.MaxHoldingDays, p.MaxHoldingDays)
	set(&f.CooldownDays, p.CooldownDays)
	set(&f.TargetPct, p.TargetPct)
	set(&f.MaxPct, p.MaxPct)
	set(&f.EntryRule, p.EntryRule)
	set(&f.StopLoss, p.StopLoss)
	set(&f.TakeProfit, p.TakeProfit)
	set(&f.TakeProfitSize, p.TakeProfitSize)
	set(&f.TrailingStop, p.TrailingStop)
	set(&f.EarningsBlockDays, p.EarningsBlockDays)
	set(&f.ConfirmationDelaySec, p.ConfirmationDelaySec)
	if p.RequireOverrideReason != nil {
		f.RequireOverrideReason = *p.RequireOverrideReason
	}
	return f
}

// IsEmpty reports whether p would not change any form.
func (p FormPatch) IsEmpty() bool {
	return p == FormPatch{}
}

// DocumentToForm extracts whatever it can from a generic JSON document.
//
// Each field is set only if its key exists with the expected JSON type, so a
// partial or unexpected document never corrupts the form it is applied to.
func DocumentToForm(doc map[string]any) FormPatch {
	var p FormPatch
	if doc == nil {
		return p
	}
	if s, ok := lookupString(doc, "$.strategy_type"); ok {
		t := ParseStrategyType(s).Title()
		p.StrategyType = &t
	}
	p.MaxHoldingDays = lookupIntText(doc, "$.position_intent.max_holding_days")
	p.CooldownDays = lookupIntText(doc, "$.position_intent.cooldown_days_after_exit")
	p.TargetPct = lookupPercentText(doc, "$.position_sizing.target_pct")
	p.MaxPct = lookupPercentText(doc, "$.position_sizing.max_pct")
	if s, ok := lookupString(doc, "$.entry_rules[0].condition_expr"); ok {
		p.EntryRule = &s
	}
	p.StopLoss = lookupPercentText(doc, "$.exit_rules.hard_stop.value")
	p.TrailingStop = lookupPercentText(doc, "$.exit_rules.trailing_stop.value")
	if tiers, ok := lookupTakeProfits(doc); ok {
		pct, size := FormatTakeProfitLadder(tiers)
		p.TakeProfit, p.TakeProfitSize = &pct, &size
	}
	p.EarningsBlockDays = lookupIntText(doc, "$.risk_rules.ticker.earnings_window_block_days")
	p.ConfirmationDelaySec = lookupIntText(doc, "$.behavior_controls.confirmation_delay_sec")
	if v, ok := lookup(doc, "$.behavior_controls.require_override_reason"); ok {
		if b, ok := v.(bool); ok {
			p.RequireOverrideReason = &b
		}
	}
	return p
}

// lookup evaluates a jsonpath in doc. Missing keys, out of range indexes or
// intermediate values of the wrong type are all reported as not found.
func lookup(doc any, path string) (any, bool) {
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, false
	}
	// jsonpath may wrap a single answer in a list.
	if list, ok := v.([]any); ok && len(list) == 1 && strings.ContainsAny(path, "*?") {
		v = list[0]
	}
	return v, v != nil
}

func lookupString(doc any, path string) (string, bool) {
	v, ok := lookup(doc, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupNumber(doc any, path string) (float64, bool) {
	v, ok := lookup(doc, path)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// lookupIntText reads an integral number as form text.
func lookupIntText(doc any, path string) *string {
	f, ok := lookupNumber(doc, path)
	if !ok || f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	s := strconv.Itoa(int(f))
	return &s
}

// lookupPercentText reads a fraction as form text ("8%").
func lookupPercentText(doc any, path string) *string {
	f, ok := lookupNumber(doc, path)
	if !ok {
		return nil
	}
	s := Percent(f).String()
	return &s
}

// lookupTakeProfits reads the take-profit tiers, all of them or none.
func lookupTakeProfits(doc any) ([]TakeProfit, bool) {
	v, ok := lookup(doc, "$.exit_rules.take_profits")
	if !ok {
		return nil, false
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	tiers := make([]TakeProfit, 0, len(list))
	for _, item := range list {
		gain, ok := lookupNumber(item, "$.pct_gain")
		if !ok {
			return nil, false
		}
		size, ok := lookupNumber(item, "$.size_pct")
		if !ok {
			return nil, false
		}
		tiers = append(tiers, TakeProfit{PctGain: Percent(gain), SizePct: Percent(size)})
	}
	return tiers, true
}
