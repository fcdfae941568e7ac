package discipline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// CoalescingWindow is the minimum delay between two refresh chains.
	CoalescingWindow = 5 * time.Second
	// DefaultRetries and DefaultRetryDelay are the refresh policy of the boards.
	DefaultRetries    = 2
	DefaultRetryDelay = 4 * time.Second
)

const msgRefreshFailed = "Price refresh failed"

// PriceSnapshot is a consistent copy of a refresher's state.
type PriceSnapshot struct {
	// IDs are the tracked ids, in order.
	IDs []int
	// Prices holds the known prices, a missing id has no price yet.
	Prices     map[int]Price
	Refreshing bool
	Message    string
}

// Price returns the known price of id, the absent price if unknown.
func (s PriceSnapshot) Price(id int) Price { return s.Prices[id] }

// Missing returns the number of tracked ids without a price.
func (s PriceSnapshot) Missing() int {
	n := 0
	for _, id := range s.IDs {
		if !s.Prices[id].IsSet() {
			n++
		}
	}
	return n
}

// PriceRefresher keeps the prices of a collection of stocks up to date.
//
// A refresh chain fetches all prices, merges them by id, and retries after a
// delay while some prices are still missing. Chains are coalesced: a refresh
// requested while a chain is running, or less than CoalescingWindow after the
// previous one started, does nothing. Reset starts a new generation, results
// of chains from older generations are discarded.
type PriceRefresher struct {
	source PriceSource
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	window time.Duration

	mu            sync.Mutex
	generation    uint64
	ids           []int
	prices        map[int]Price
	inFlight      bool
	lastStartedAt time.Time
	message       string

	wg  sync.WaitGroup
	obs observers[PriceSnapshot]
}

// RefresherOption configures a PriceRefresher.
type RefresherOption func(*PriceRefresher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *PriceRefresher) { r.now = now }
}

// WithSleep replaces the delay between retries.
func WithSleep(sleep func(context.Context, time.Duration) error) RefresherOption {
	return func(r *PriceRefresher) { r.sleep = sleep }
}

// WithCoalescingWindow replaces CoalescingWindow.
func WithCoalescingWindow(d time.Duration) RefresherOption {
	return func(r *PriceRefresher) { r.window = d }
}

// NewPriceRefresher returns a refresher tracking no stock.
func NewPriceRefresher(source PriceSource, opts ...RefresherOption) *PriceRefresher {
	r := &PriceRefresher{
		source: source,
		now:    time.Now,
		sleep:  sleepContext,
		window: CoalescingWindow,
		prices: make(map[int]Price),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Subscribe registers fn to be called after every change.
func (r *PriceRefresher) Subscribe(fn func(PriceSnapshot)) (cancel func()) {
	return r.obs.subscribe(fn)
}

// Snapshot returns the current state.
func (r *PriceRefresher) Snapshot() PriceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *PriceRefresher) snapshotLocked() PriceSnapshot {
	prices := make(map[int]Price, len(r.prices))
	for id, p := range r.prices {
		prices[id] = p
	}
	return PriceSnapshot{
		IDs:        append([]int(nil), r.ids...),
		Prices:     prices,
		Refreshing: r.inFlight,
		Message:    r.message,
	}
}

func (r *PriceRefresher) unlock() {
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.obs.notify(snap)
}

// Reset tracks ids, with no known price, and supersedes any running chain.
func (r *PriceRefresher) Reset(ids []int) {
	r.mu.Lock()
	defer r.unlock()
	r.generation++
	r.ids = append([]int(nil), ids...)
	r.prices = make(map[int]Price)
	r.inFlight = false
	r.lastStartedAt = time.Time{}
	r.message = ""
}

// Refresh runs a refresh chain with at most retries retries, delay apart.
//
// It returns nil when coalesced or superseded, and the last fetch error if
// the chain gave up on it.
func (r *PriceRefresher) Refresh(ctx context.Context, retries int, delay time.Duration) error {
	r.mu.Lock()
	now := r.now()
	if inFlight := r.inFlight; inFlight || (!r.lastStartedAt.IsZero() && now.Sub(r.lastStartedAt) < r.window) {
		r.mu.Unlock()
		log.Debug().Bool("in_flight", inFlight).Msg("price refresh coalesced")
		return nil
	}
	gen := r.generation
	r.inFlight = true
	r.lastStartedAt = now
	r.unlock()

	defer func() {
		r.mu.Lock()
		if gen != r.generation {
			r.mu.Unlock()
			return
		}
		r.inFlight = false
		r.unlock()
	}()

	for attempt := 1; ; attempt++ {
		prices, err := r.source.ListStockPrices(ctx)

		r.mu.Lock()
		if gen != r.generation {
			r.mu.Unlock()
			log.Debug().Int("attempt", attempt).Msg("discarding superseded price refresh")
			return nil
		}
		if err != nil {
			r.message = UserMessage(msgRefreshFailed, err)
		} else {
			r.mergeLocked(prices)
			r.message = ""
		}
		missing := r.missingLocked()
		r.unlock()

		log.Debug().Int("attempt", attempt).Int("missing", missing).Err(err).Msg("price refresh")
		if (err == nil && missing == 0) || retries <= 0 {
			if err != nil {
				return fmt.Errorf("cannot refresh prices: %w", err)
			}
			return nil
		}
		retries--
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
		r.mu.Lock()
		superseded := gen != r.generation
		r.mu.Unlock()
		if superseded {
			log.Debug().Int("attempt", attempt).Msg("price refresh superseded during its delay")
			return nil
		}
	}
}

// Start runs a refresh chain in the background. Use Wait to wait for it.
func (r *PriceRefresher) Start(ctx context.Context, retries int, delay time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.Refresh(ctx, retries, delay); err != nil {
			log.Debug().Err(err).Msg("background price refresh")
		}
	}()
}

// Wait blocks until every chain started with Start is done.
func (r *PriceRefresher) Wait() { r.wg.Wait() }

// mergeLocked stores the received prices of tracked ids. Ids absent from the
// answer, or received without a price, keep their previous price.
func (r *PriceRefresher) mergeLocked(prices []StockPrice) {
	tracked := make(map[int]bool, len(r.ids))
	for _, id := range r.ids {
		tracked[id] = true
	}
	for _, p := range prices {
		if tracked[p.ID] && p.Price.IsSet() {
			r.prices[p.ID] = p.Price
		}
	}
}

func (r *PriceRefresher) missingLocked() int {
	n := 0
	for _, id := range r.ids {
		if !r.prices[id].IsSet() {
			n++
		}
	}
	return n
}
