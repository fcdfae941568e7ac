package discipline

import (
	"strings"
)

// SchemaVersion is the version of the RuleDocument schema produced by this package.
const SchemaVersion = "1.3"

// StrategyType is the kind of trade a rule plan governs. It is persisted lower-case.
type StrategyType string

const (
	Swing    StrategyType = "swing"
	Position StrategyType = "position"
	Momentum StrategyType = "momentum"
	Breakout StrategyType = "breakout"
	Value    StrategyType = "value"
)

// StrategyTypes lists the known strategy types.
var StrategyTypes = []StrategyType{Swing, Position, Momentum, Breakout, Value}

// ParseStrategyType normalizes s to its persisted form. Unknown strategies are
// kept, lower-cased, an empty one is Swing.
func ParseStrategyType(s string) StrategyType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Swing
	}
	return StrategyType(s)
}

// Known reports whether s is one of StrategyTypes.
func (s StrategyType) Known() bool {
	for _, k := range StrategyTypes {
		if s == k {
			return true
		}
	}
	return false
}

// Title returns the display form of s, "swing" is "Swing".
func (s StrategyType) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// RuleDocument is the canonical, schema versioned, content of a rule plan.
type RuleDocument struct {
	SchemaVersion    string           `json:"schema_version"`
	StrategyType     StrategyType     `json:"strategy_type"`
	IndicatorPolicy  IndicatorPolicy  `json:"indicator_policy"`
	Indicators       []Indicator      `json:"indicators"`
	PositionIntent   PositionIntent   `json:"position_intent"`
	PositionSizing   PositionSizing   `json:"position_sizing"`
	EntryRules       []EntryRule      `json:"entry_rules"`
	ExitRules        ExitRules        `json:"exit_rules"`
	RiskRules        RiskRules        `json:"risk_rules"`
	BehaviorControls BehaviorControls `json:"behavior_controls"`
}

// IndicatorPolicy tells the backend how indicators are computed.
type IndicatorPolicy struct {
	Timeframe  string `json:"timeframe"`
	PriceField string `json:"price_field"`
	UseEODOnly bool   `json:"use_eod_only"`
}

type Indicator struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Period int    `json:"period"`
}

type PositionIntent struct {
	MaxHoldingDays        int `json:"max_holding_days"`
	CooldownDaysAfterExit int `json:"cooldown_days_after_exit"`
}

type PositionSizing struct {
	TargetPct   Percent  `json:"target_pct"`
	MaxPct      Percent  `json:"max_pct"`
	AccountSize *float64 `json:"account_size,omitempty"`
}

type EntryRule struct {
	ID            string  `json:"id"`
	Priority      int     `json:"priority"`
	SizePct       Percent `json:"size_pct"`
	ConditionExpr string  `json:"condition_expr"`
}

type ExitRules struct {
	HardStop     Stop         `json:"hard_stop"`
	TakeProfits  []TakeProfit `json:"take_profits"`
	TrailingStop Stop         `json:"trailing_stop"`
	TimeStop     TimeStop     `json:"time_stop"`
}

// Stop is a stop distance, relative to the entry or to the peak depending on Type.
type Stop struct {
	Type  string  `json:"type"`
	Value Percent `json:"value"`
}

const (
	HardStopType     = "pct_below_entry"
	TrailingStopType = "pct_from_peak"
)

type TimeStop struct {
	MaxHoldingDays int `json:"max_holding_days"`
}

// RiskRules has three tiers, only the ticker one is editable.
type RiskRules struct {
	Account  AccountRisk  `json:"account"`
	Strategy StrategyRisk `json:"strategy"`
	Ticker   TickerRisk   `json:"ticker"`
}

type AccountRisk struct {
	MaxDailyLossPct  Percent `json:"max_daily_loss_pct"`
	MaxDrawdownPct   Percent `json:"max_drawdown_pct"`
	MaxOpenPositions int     `json:"max_open_positions"`
}

type StrategyRisk struct {
	MaxStrategyExposurePct Percent `json:"max_strategy_exposure_pct"`
	MaxConsecutiveLosses   int     `json:"max_consecutive_losses"`
}

type TickerRisk struct {
	MaxPositionPct          Percent  `json:"max_position_pct"`
	MaxLossPerTicker        Percent  `json:"max_loss_per_ticker"`
	Blacklist               []string `json:"blacklist"`
	EarningsWindowBlockDays int      `json:"earnings_window_block_days"`
}

type BehaviorControls struct {
	ConfirmationDelaySec  int  `json:"confirmation_delay_sec"`
	RequireOverrideReason bool `json:"require_override_reason"`
	DailyActionLimit      int  `json:"daily_action_limit"`
}

// Policy constants. They are injected in every document and cannot be edited.

// DefaultIndicatorPolicy is daily, end of day close prices only.
func DefaultIndicatorPolicy() IndicatorPolicy {
	return IndicatorPolicy{Timeframe: "1D", PriceField: "close", UseEODOnly: true}
}

// DefaultIndicators are the indicators every rule plan can refer to.
func DefaultIndicators() []Indicator {
	return []Indicator{
		{ID: "sma_20", Type: "sma", Period: 20},
		{ID: "sma_120", Type: "sma", Period: 120},
		{ID: "rsi_14", Type: "rsi", Period: 14},
	}
}

// DefaultAccountRisk returns the account limits every document carries.
func DefaultAccountRisk() AccountRisk {
	return AccountRisk{MaxDailyLossPct: 0.02, MaxDrawdownPct: 0.10, MaxOpenPositions: 10}
}

// DefaultStrategyRisk returns the strategy limits every document carries.
func DefaultStrategyRisk() StrategyRisk {
	return StrategyRisk{MaxStrategyExposurePct: 0.30, MaxConsecutiveLosses: 3}
}

const (
	// DefaultMaxLossPerTicker is the fixed loss budget of a single ticker.
	DefaultMaxLossPerTicker Percent = 0.02
	// DailyActionLimit is the fixed number of actions allowed per day.
	DailyActionLimit = 2
)
