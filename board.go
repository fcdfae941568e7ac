package discipline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrTickerNotFound is returned by AddStock when the backend rejects the ticker.
var ErrTickerNotFound = errors.New("Ticker not found")

// Board messages.
const (
	msgLoadPortfolioFailed = "Failed to load portfolio"
	msgLoadStatusFailed    = "Failed to load status"
	msgAddFailed           = "Failed to add stock"
	msgArchiveFailed       = "Failed to archive stock"
	msgUpdateFailed        = "Failed to update position"
)

// DefaultCurrency returns the usual currency of market, or "" if unknown.
func DefaultCurrency(market string) string {
	switch strings.ToUpper(market) {
	case MarketUS:
		return "USD"
	case MarketHK:
		return "HKD"
	case "CN":
		return "CNY"
	}
	return ""
}

// visibleStocks filters out archived stocks.
func visibleStocks(stocks []Stock) (visible []Stock, ids []int) {
	for _, s := range stocks {
		if s.Archived() {
			continue
		}
		visible = append(visible, s)
		ids = append(ids, s.ID)
	}
	return visible, ids
}

// PortfolioSnapshot is a consistent copy of a Portfolio's state.
type PortfolioSnapshot struct {
	Stocks  []Stock
	Prices  PriceSnapshot
	Loading bool
	Message string
}

// Portfolio lists the tracked stocks with their live prices, and manages them.
type Portfolio struct {
	store  PortfolioStore
	prices *PriceRefresher

	mu         sync.Mutex
	generation uint64
	stocks     []Stock
	loading    bool
	message    string

	obs observers[PortfolioSnapshot]
}

// NewPortfolio returns an empty portfolio, opts configure its price refresher.
func NewPortfolio(store PortfolioStore, opts ...RefresherOption) *Portfolio {
	p := &Portfolio{store: store, prices: NewPriceRefresher(store, opts...)}
	p.prices.Subscribe(func(PriceSnapshot) { p.obs.notify(p.Snapshot()) })
	return p
}

// Subscribe registers fn to be called after every change, prices included.
func (p *Portfolio) Subscribe(fn func(PortfolioSnapshot)) (cancel func()) {
	return p.obs.subscribe(fn)
}

// Prices returns the portfolio's price refresher.
func (p *Portfolio) Prices() *PriceRefresher { return p.prices }

// Snapshot returns the current state, with the latest prices.
func (p *Portfolio) Snapshot() PortfolioSnapshot {
	prices := p.prices.Snapshot()
	p.mu.Lock()
	defer p.mu.Unlock()
	return PortfolioSnapshot{
		Stocks:  append([]Stock(nil), p.stocks...),
		Prices:  prices,
		Loading: p.loading,
		Message: p.message,
	}
}

func (p *Portfolio) unlock() {
	p.mu.Unlock()
	p.obs.notify(p.Snapshot())
}

// Load lists the stocks, hides archived ones, and starts a new price refresh
// chain superseding any previous one.
func (p *Portfolio) Load(ctx context.Context) error {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.loading = true
	p.message = ""
	p.unlock()

	stocks, err := p.store.ListStocks(ctx)

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return nil
	}
	p.loading = false
	if err != nil {
		p.message = UserMessage(msgLoadPortfolioFailed, err)
		p.unlock()
		return fmt.Errorf("cannot list stocks: %w", err)
	}
	visible, ids := visibleStocks(stocks)
	p.stocks = visible
	p.unlock()

	p.prices.Reset(ids)
	p.prices.Start(ctx, DefaultRetries, DefaultRetryDelay)
	return nil
}

// RefreshPrices runs a price refresh chain, unless one ran recently.
func (p *Portfolio) RefreshPrices(ctx context.Context) error {
	return p.prices.Refresh(ctx, DefaultRetries, DefaultRetryDelay)
}

// Wait blocks until background price refreshes are done.
func (p *Portfolio) Wait() { p.prices.Wait() }

// fail records a user message for err and returns err.
func (p *Portfolio) fail(prefix string, err error) error {
	p.mu.Lock()
	if errors.Is(err, ErrTickerNotFound) {
		p.message = ErrTickerNotFound.Error()
	} else {
		p.message = UserMessage(prefix, err)
	}
	p.unlock()
	return err
}

// AddStock normalizes the ticker, checks US tickers with the backend, creates
// the stock and reloads. A ticker the backend could not check is accepted.
func (p *Portfolio) AddStock(ctx context.Context, req StockCreate) (Stock, error) {
	req.Ticker = NormalizeTicker(req.Ticker, req.Market)
	req.Market = strings.ToUpper(strings.TrimSpace(req.Market))
	if req.Ticker == "" {
		return Stock{}, p.fail(msgAddFailed, errors.New("empty ticker"))
	}
	if req.Currency == "" {
		req.Currency = DefaultCurrency(req.Market)
	}
	if req.Status == "" {
		req.Status = StatusActive
	}
	if req.PositionState == "" {
		req.PositionState = Flat
	}
	if req.Market == MarketUS {
		v, err := p.store.ValidateTicker(ctx, req.Ticker, req.Market)
		if err != nil {
			return Stock{}, p.fail(msgAddFailed, fmt.Errorf("cannot validate %s: %w", req.Ticker, err))
		}
		if v.Unverified() {
			log.Info().Str("ticker", req.Ticker).Msg("ticker could not be verified, adding anyway")
		} else if !v.Valid {
			return Stock{}, p.fail(msgAddFailed, fmt.Errorf("%s: %w", req.Ticker, ErrTickerNotFound))
		}
	}
	s, err := p.store.CreateStock(ctx, req)
	if err != nil {
		return Stock{}, p.fail(msgAddFailed, fmt.Errorf("cannot create %s: %w", req.Ticker, err))
	}
	return s, p.Load(ctx)
}

// ArchiveStock archives a stock and reloads.
func (p *Portfolio) ArchiveStock(ctx context.Context, id int) (Stock, error) {
	s, err := p.store.ArchiveStock(ctx, id)
	if err != nil {
		return Stock{}, p.fail(msgArchiveFailed, fmt.Errorf("cannot archive stock %d: %w", id, err))
	}
	return s, p.Load(ctx)
}

// UpdatePosition sets the position quantity and average entry price of a
// stock, a nil qty or an absent price is left unchanged.
func (p *Portfolio) UpdatePosition(ctx context.Context, id int, qty *int, avg Price) (Stock, error) {
	u := StockUpdate{PositionQty: qty, AvgEntryPrice: avg}
	if u.IsEmpty() {
		return Stock{}, p.fail(msgUpdateFailed, errors.New("nothing to update"))
	}
	s, err := p.store.UpdateStock(ctx, id, u)
	if err != nil {
		return Stock{}, p.fail(msgUpdateFailed, fmt.Errorf("cannot update stock %d: %w", id, err))
	}
	return s, p.Load(ctx)
}

// Status states.
const (
	StateBlocked  = "BLOCKED"
	StateArchived = "ARCHIVED"
)

// StockStatus is the trading status of a stock.
type StockStatus struct {
	ID            int
	Ticker        string
	State         string
	Reason        string
	ActionAllowed bool
}

// StatusSnapshot is a consistent copy of a StatusBoard's state.
type StatusSnapshot struct {
	Statuses []StockStatus
	Prices   PriceSnapshot
	Loading  bool
	Message  string
}

// StatusBoard lists the trading status of every visible stock with its price.
//
// No decision engine is wired yet: every stock is BLOCKED.
type StatusBoard struct {
	store  PortfolioStore
	prices *PriceRefresher

	mu         sync.Mutex
	generation uint64
	statuses   []StockStatus
	loading    bool
	message    string

	obs observers[StatusSnapshot]
}

// NewStatusBoard returns an empty status board, opts configure its price
// refresher.
func NewStatusBoard(store PortfolioStore, opts ...RefresherOption) *StatusBoard {
	b := &StatusBoard{store: store, prices: NewPriceRefresher(store, opts...)}
	b.prices.Subscribe(func(PriceSnapshot) { b.obs.notify(b.Snapshot()) })
	return b
}

// Subscribe registers fn to be called after every change, prices included.
func (b *StatusBoard) Subscribe(fn func(StatusSnapshot)) (cancel func()) {
	return b.obs.subscribe(fn)
}

// Prices returns the board's price refresher.
func (b *StatusBoard) Prices() *PriceRefresher { return b.prices }

// Snapshot returns the current state, with the latest prices.
func (b *StatusBoard) Snapshot() StatusSnapshot {
	prices := b.prices.Snapshot()
	b.mu.Lock()
	defer b.mu.Unlock()
	return StatusSnapshot{
		Statuses: append([]StockStatus(nil), b.statuses...),
		Prices:   prices,
		Loading:  b.loading,
		Message:  b.message,
	}
}

func (b *StatusBoard) unlock() {
	b.mu.Unlock()
	b.obs.notify(b.Snapshot())
}

// Load lists the visible stocks and starts a new price refresh chain.
func (b *StatusBoard) Load(ctx context.Context) error {
	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.loading = true
	b.message = ""
	b.unlock()

	stocks, err := b.store.ListStocks(ctx)

	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return nil
	}
	b.loading = false
	if err != nil {
		b.message = UserMessage(msgLoadStatusFailed, err)
		b.unlock()
		return fmt.Errorf("cannot list stocks: %w", err)
	}
	visible, ids := visibleStocks(stocks)
	b.statuses = make([]StockStatus, 0, len(visible))
	for _, s := range visible {
		state := StateBlocked
		if s.Archived() {
			state = StateArchived
		}
		b.statuses = append(b.statuses, StockStatus{
			ID:     s.ID,
			Ticker: s.Ticker,
			State:  state,
			Reason: "No decision available",
		})
	}
	b.unlock()

	b.prices.Reset(ids)
	b.prices.Start(ctx, DefaultRetries, DefaultRetryDelay)
	return nil
}

// Wait blocks until background price refreshes are done.
func (b *StatusBoard) Wait() { b.prices.Wait() }
