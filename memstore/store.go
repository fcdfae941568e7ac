// Package memstore is an in-memory implementation of the discipline stores.
//
// It enforces the same rules as the real backend: rule plan versions are
// append only and only the latest one is active, archiving never deletes, and
// prices are only known for US stocks. Handler exposes it over HTTP with the
// backend routes.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/etnz/discipline"
)

// Store errors, mapped to HTTP status codes by Handler.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
)

// Store is safe for concurrent use. Its zero value is not usable, use New.
type Store struct {
	now func() time.Time

	mu     sync.Mutex
	stocks []discipline.Stock
	plans  map[int][]discipline.RulePlan
	prices map[string]discipline.Price
	// known lists the valid US tickers, nil when they cannot be checked.
	known   map[string]bool
	nextID  int
	planIDs int
}

var (
	_ discipline.RulePlanStore  = (*Store)(nil)
	_ discipline.PortfolioStore = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		now:    time.Now,
		plans:  make(map[int][]discipline.RulePlan),
		prices: make(map[string]discipline.Price),
	}
}

// SetClock replaces time.Now for creation times.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetPrice sets the current price of a ticker. An absent price removes it.
func (s *Store) SetPrice(ticker string, p discipline.Price) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticker = strings.ToUpper(ticker)
	if !p.IsSet() {
		delete(s.prices, ticker)
		return
	}
	s.prices[ticker] = p
}

// SetKnownTickers sets the list of valid US tickers. Without it, every US
// ticker is reported as unverified.
func (s *Store) SetKnownTickers(tickers ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known = make(map[string]bool, len(tickers))
	for _, t := range tickers {
		s.known[strings.ToUpper(t)] = true
	}
}

// find returns the index of stock id, or an error.
func (s *Store) find(id int) (int, error) {
	for i, st := range s.stocks {
		if st.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("stock %d: %w", id, ErrNotFound)
}

// ListStocks returns every stock in creation order.
func (s *Store) ListStocks(ctx context.Context) ([]discipline.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]discipline.Stock{}, s.stocks...), nil
}

// ListStockPrices returns the price of every stock. Archived and non-US
// stocks have no price.
func (s *Store) ListStockPrices(ctx context.Context) ([]discipline.StockPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prices := make([]discipline.StockPrice, 0, len(s.stocks))
	for _, st := range s.stocks {
		p := discipline.StockPrice{ID: st.ID, Ticker: st.Ticker}
		if !st.Archived() && strings.EqualFold(st.Market, discipline.MarketUS) {
			p.Price = s.prices[st.Ticker]
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// CreateStock creates a stock. Creating an existing ticker updates and
// re-activates it.
func (s *Store) CreateStock(ctx context.Context, req discipline.StockCreate) (discipline.Stock, error) {
	if strings.TrimSpace(req.Ticker) == "" {
		return discipline.Stock{}, fmt.Errorf("empty ticker: %w", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := discipline.Stock{
		Ticker:        req.Ticker,
		Market:        req.Market,
		Currency:      req.Currency,
		Status:        discipline.StatusActive,
		PositionState: req.PositionState,
		AvgEntryPrice: req.AvgEntryPrice,
		PositionQty:   req.PositionQty,
	}
	if st.PositionState == "" {
		st.PositionState = discipline.Flat
	}
	for i, existing := range s.stocks {
		if existing.Ticker == req.Ticker {
			st.ID, st.CreatedAt = existing.ID, existing.CreatedAt
			s.stocks[i] = st
			return st, nil
		}
	}
	s.nextID++
	st.ID = s.nextID
	st.CreatedAt = discipline.Timestamp{Time: s.now().UTC()}
	s.stocks = append(s.stocks, st)
	return st, nil
}

// UpdateStock applies a partial update. Setting the position quantity also
// sets the position state.
func (s *Store) UpdateStock(ctx context.Context, id int, req discipline.StockUpdate) (discipline.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.find(id)
	if err != nil {
		return discipline.Stock{}, err
	}
	st := &s.stocks[i]
	if req.Market != "" {
		st.Market = req.Market
	}
	if req.Currency != "" {
		st.Currency = req.Currency
	}
	if req.Status != "" {
		st.Status = req.Status
	}
	if req.PositionState != "" {
		st.PositionState = req.PositionState
	}
	if req.AvgEntryPrice.IsSet() {
		st.AvgEntryPrice = req.AvgEntryPrice
	}
	if req.PositionQty != nil {
		qty := *req.PositionQty
		st.PositionQty = &qty
		st.PositionState = discipline.Flat
		if qty > 0 {
			st.PositionState = discipline.Holding
		}
	}
	return *st, nil
}

// ArchiveStock sets the stock status to archived.
func (s *Store) ArchiveStock(ctx context.Context, id int) (discipline.Stock, error) {
	return s.UpdateStock(ctx, id, discipline.StockUpdate{Status: discipline.StatusArchived})
}

// ValidateTicker accepts any non-US ticker, US tickers are checked against the
// known tickers.
func (s *Store) ValidateTicker(ctx context.Context, ticker, market string) (discipline.TickerValidation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := discipline.TickerValidation{Ticker: strings.ToUpper(ticker), Valid: true}
	if market != "" && !strings.EqualFold(market, discipline.MarketUS) {
		return v, nil
	}
	switch {
	case s.known == nil:
		v.Status = "unverified"
	case !s.known[v.Ticker]:
		v.Valid, v.Status = false, "invalid"
	}
	return v, nil
}

// ListRulePlans returns the versions of a stock, latest first.
func (s *Store) ListRulePlans(ctx context.Context, stockID int) ([]discipline.RulePlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.find(stockID); err != nil {
		return nil, err
	}
	plans := append([]discipline.RulePlan{}, s.plans[stockID]...)
	sort.Slice(plans, func(i, j int) bool { return plans[i].Version > plans[j].Version })
	return plans, nil
}

// CreateRulePlanVersion appends a new active version, deactivating the
// previous one. The document must be a JSON object, it is stored verbatim.
func (s *Store) CreateRulePlanVersion(ctx context.Context, stockID int, doc json.RawMessage, notes string) (discipline.RulePlan, error) {
	if _, err := discipline.ParseDocument(string(doc)); err != nil {
		return discipline.RulePlan{}, fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.find(stockID); err != nil {
		return discipline.RulePlan{}, err
	}
	plans := s.plans[stockID]
	for i := range plans {
		plans[i].IsActive = false
	}
	s.planIDs++
	p := discipline.RulePlan{
		ID:        s.planIDs,
		StockID:   stockID,
		Version:   discipline.NextVersion(plans),
		IsActive:  true,
		Rules:     append(json.RawMessage(nil), doc...),
		Notes:     notes,
		CreatedAt: discipline.Timestamp{Time: s.now().UTC()},
	}
	s.plans[stockID] = append(plans, p)
	return p, nil
}
