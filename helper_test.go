package discipline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// errBackend is a helper for test to simulate a backend failure.
var errBackend = &HTTPStatusError{Code: 500, Body: `{"detail":"boom"}`}

// plan is a helper for test to create a rule plan from a document.
func plan(stock, version int, active bool, rules string) RulePlan {
	return RulePlan{ID: version, StockID: stock, Version: version, IsActive: active, Rules: json.RawMessage(rules)}
}

// fakePlans is an in-memory RulePlanStore with failure injection.
type fakePlans struct {
	mu    sync.Mutex
	plans map[int][]RulePlan
	// listErr and createErr are returned when set.
	listErr, createErr error
	// lists of blockStock signal entered, then wait for block to be closed.
	blockStock int
	block      chan struct{}
	entered    chan struct{}
	// created records the documents received.
	created []json.RawMessage
}

// blockLists makes lists of stockID wait for the returned release function.
func (f *fakePlans) blockLists(stockID int) (entered <-chan struct{}, release func()) {
	f.blockStock = stockID
	f.block = make(chan struct{})
	f.entered = make(chan struct{})
	return f.entered, func() { close(f.block) }
}

func newFakePlans(plans ...RulePlan) *fakePlans {
	f := &fakePlans{plans: make(map[int][]RulePlan)}
	for _, p := range plans {
		f.plans[p.StockID] = append(f.plans[p.StockID], p)
	}
	return f
}

func (f *fakePlans) ListRulePlans(ctx context.Context, stockID int) ([]RulePlan, error) {
	if f.block != nil && stockID == f.blockStock {
		close(f.entered)
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]RulePlan(nil), f.plans[stockID]...), nil
}

func (f *fakePlans) CreateRulePlanVersion(ctx context.Context, stockID int, doc json.RawMessage, notes string) (RulePlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, doc)
	if f.createErr != nil {
		return RulePlan{}, f.createErr
	}
	plans := f.plans[stockID]
	for i := range plans {
		plans[i].IsActive = false
	}
	p := RulePlan{
		ID:       len(plans) + 100,
		StockID:  stockID,
		Version:  NextVersion(plans),
		IsActive: true,
		Rules:    doc,
		Notes:    notes,
	}
	f.plans[stockID] = append(plans, p)
	return p, nil
}

// fakePrices is a PriceSource answering a scripted sequence of results.
type fakePrices struct {
	mu      sync.Mutex
	answers []priceAnswer
	calls   int
	// hook, when set, is called at the start of each fetch with its index.
	hook func(call int)
}

type priceAnswer struct {
	prices []StockPrice
	err    error
}

func (f *fakePrices) ListStockPrices(ctx context.Context) ([]StockPrice, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	hook := f.hook
	var a priceAnswer
	if len(f.answers) > 0 {
		i := min(call, len(f.answers)-1)
		a = f.answers[i]
	}
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	return a.prices, a.err
}

func (f *fakePrices) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeClock is a manual clock, sleeping advances it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	// slept records every requested delay.
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// fakePortfolio is an in-memory PortfolioStore.
type fakePortfolio struct {
	fakePrices

	mu         sync.Mutex
	stocks     []Stock
	validation map[string]TickerValidation
	validated  []string
	updates    []StockUpdate
	listErr    error
}

func (f *fakePortfolio) ListStocks(ctx context.Context) ([]Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Stock(nil), f.stocks...), nil
}

func (f *fakePortfolio) CreateStock(ctx context.Context, req StockCreate) (Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Stock{
		ID:            len(f.stocks) + 1,
		Ticker:        req.Ticker,
		Market:        req.Market,
		Currency:      req.Currency,
		Status:        req.Status,
		PositionState: req.PositionState,
	}
	f.stocks = append(f.stocks, s)
	return s, nil
}

func (f *fakePortfolio) UpdateStock(ctx context.Context, id int, req StockUpdate) (Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, req)
	for i, s := range f.stocks {
		if s.ID == id {
			if req.PositionQty != nil {
				f.stocks[i].PositionQty = req.PositionQty
			}
			return f.stocks[i], nil
		}
	}
	return Stock{}, &HTTPStatusError{Code: 404, Body: `{"detail":"Stock not found"}`}
}

func (f *fakePortfolio) ArchiveStock(ctx context.Context, id int) (Stock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.stocks {
		if s.ID == id {
			f.stocks[i].Status = StatusArchived
			return f.stocks[i], nil
		}
	}
	return Stock{}, &HTTPStatusError{Code: 404, Body: `{"detail":"Stock not found"}`}
}

func (f *fakePortfolio) ValidateTicker(ctx context.Context, ticker, market string) (TickerValidation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, ticker)
	v, ok := f.validation[ticker]
	if !ok {
		return TickerValidation{}, errors.New("no validation scripted")
	}
	return v, nil
}
