package discipline

import (
	"encoding/json"
	"strings"
)

// Stock status values.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Position state values, derived from the position quantity.
const (
	Flat    = "flat"
	Holding = "holding"
)

// Markets with special handling.
const (
	MarketUS = "US"
	MarketHK = "HK"
)

// Stock is a tracked ticker of the portfolio.
type Stock struct {
	ID            int       `json:"id"`
	Ticker        string    `json:"ticker"`
	Market        string    `json:"market"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	PositionState string    `json:"position_state"`
	AvgEntryPrice Price     `json:"avg_entry_price"`
	PositionQty   *int      `json:"position_qty"`
	CreatedAt     Timestamp `json:"created_at"`
}

// Archived reports whether s is hidden from the boards.
func (s Stock) Archived() bool { return s.Status == StatusArchived }

// StockPrice is the latest known price of a stock.
type StockPrice struct {
	ID     int    `json:"id"`
	Ticker string `json:"ticker"`
	Price  Price  `json:"price"`
}

// StockCreate is the payload to create a stock.
type StockCreate struct {
	Ticker        string `json:"ticker"`
	Market        string `json:"market"`
	Currency      string `json:"currency"`
	Status        string `json:"status,omitempty"`
	PositionState string `json:"position_state,omitempty"`
	AvgEntryPrice Price  `json:"avg_entry_price"`
	PositionQty   *int   `json:"position_qty"`
}

// StockUpdate is a partial update: only set fields are sent.
type StockUpdate struct {
	Market        string
	Currency      string
	Status        string
	PositionState string
	AvgEntryPrice Price
	PositionQty   *int
}

func (u StockUpdate) MarshalJSON() ([]byte, error) {
	var p patch
	p.SetIf("market", u.Market)
	p.SetIf("currency", u.Currency)
	p.SetIf("status", u.Status)
	p.SetIf("position_state", u.PositionState)
	if u.AvgEntryPrice.IsSet() {
		p.Set("avg_entry_price", u.AvgEntryPrice)
	}
	p.SetIf("position_qty", u.PositionQty)
	return p.MarshalJSON()
}

func (u *StockUpdate) UnmarshalJSON(data []byte) error {
	var v struct {
		Market        string `json:"market"`
		Currency      string `json:"currency"`
		Status        string `json:"status"`
		PositionState string `json:"position_state"`
		AvgEntryPrice Price  `json:"avg_entry_price"`
		PositionQty   *int   `json:"position_qty"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*u = StockUpdate(v)
	return nil
}

// IsEmpty reports whether u would not change anything.
func (u StockUpdate) IsEmpty() bool {
	return u.Market == "" && u.Currency == "" && u.Status == "" && u.PositionState == "" &&
		!u.AvgEntryPrice.IsSet() && u.PositionQty == nil
}

// TickerValidation is the answer of the remote ticker check. Status is
// "unverified" when the backend could not check the ticker.
type TickerValidation struct {
	Ticker string `json:"ticker"`
	Valid  bool   `json:"valid"`
	Status string `json:"status,omitempty"`
}

// Unverified reports whether the ticker could not be checked.
func (v TickerValidation) Unverified() bool { return v.Status == "unverified" }

// RulePlan is one persisted version of a stock's rule document.
//
// Rules is kept verbatim, versions are never modified once created.
type RulePlan struct {
	ID        int             `json:"id"`
	StockID   int             `json:"stock_id"`
	Version   int             `json:"version"`
	IsActive  bool            `json:"is_active"`
	Rules     json.RawMessage `json:"rules"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt Timestamp       `json:"created_at"`
}

// NormalizeTicker upper cases the ticker, and completes Hong Kong numeric codes
// ("00700" is "00700.HK" on the HK market).
func NormalizeTicker(ticker, market string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !strings.EqualFold(market, MarketHK) {
		return t
	}
	if len(t) == 5 && strings.Trim(t, "0123456789") == "" {
		return t + "." + MarketHK
	}
	return t
}
