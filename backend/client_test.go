package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/etnz/discipline"
	"github.com/etnz/discipline/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client to a fresh memstore served over http.
func newTestClient(t *testing.T) (*Client, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	srv := httptest.NewServer(store.Handler())
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithRateLimit(0, 0))
	require.NoError(t, err)
	return c, store
}

func TestNew(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:8000", false},
		{"https://api.example.com/", false},
		{"localhost:8000", true},
		{"ftp://localhost", true},
		{"://", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := New(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestClient_Stocks(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient(t)

	st, err := c.CreateStock(ctx, discipline.StockCreate{Ticker: "AAPL", Market: "US", Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", st.Ticker)

	qty := 5
	st, err = c.UpdateStock(ctx, st.ID, discipline.StockUpdate{PositionQty: &qty, AvgEntryPrice: discipline.P(180.5)})
	require.NoError(t, err)
	assert.Equal(t, discipline.Holding, st.PositionState)
	assert.True(t, st.AvgEntryPrice.Equal(discipline.P(180.5)))

	store.SetPrice("AAPL", discipline.P(191.25))
	prices, err := c.ListStockPrices(ctx)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices[0].Price.Equal(discipline.P(191.25)))

	st, err = c.ArchiveStock(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, st.Archived())

	stocks, err := c.ListStocks(ctx)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.True(t, stocks[0].Archived())

	v, err := c.ValidateTicker(ctx, "msft", "US")
	require.NoError(t, err)
	assert.True(t, v.Unverified())
}

func TestClient_RulePlans(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	st, err := c.CreateStock(ctx, discipline.StockCreate{Ticker: "AAPL", Market: "US"})
	require.NoError(t, err)

	doc, err := discipline.EncodeDocument(discipline.FormToDocument(discipline.DefaultForm()))
	require.NoError(t, err)
	p, err := c.CreateRulePlanVersion(ctx, st.ID, doc, "first draft")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, "first draft", p.Notes)

	p, err = c.CreateRulePlanVersion(ctx, st.ID, json.RawMessage(`{"strategy_type":"breakout"}`), "")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)

	plans, err := c.ListRulePlans(ctx, st.ID)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	active, ok := discipline.SelectActive(plans)
	require.True(t, ok)
	assert.Equal(t, 2, active.Version)
	assert.JSONEq(t, `{"strategy_type":"breakout"}`, string(active.Rules))
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)

	_, err := c.ListRulePlans(ctx, 42)
	var status *discipline.HTTPStatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.Code)
	assert.Equal(t, "stock 42: not found", status.Detail())

	st, err := c.CreateStock(ctx, discipline.StockCreate{Ticker: "AAPL"})
	require.NoError(t, err)
	_, err = c.CreateRulePlanVersion(ctx, st.ID, json.RawMessage(`[1]`), "")
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusUnprocessableEntity, status.Code)
	assert.Contains(t, discipline.UserMessage("Failed to save rule plan", err), "(422)")
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ListStocks(context.Background())
	var decode *discipline.DecodeError
	assert.ErrorAs(t, err, &decode)
	assert.Equal(t, "Failed: unexpected response from server", discipline.UserMessage("Failed", err))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	c, err := New(addr, WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = c.ListStocks(context.Background())
	var transport *discipline.TransportError
	require.ErrorAs(t, err, &transport)
	assert.Equal(t, http.MethodGet, transport.Method)
}

func TestClient_CircuitBreaker(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		http.Error(w, `{"detail":"down"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c, err := New(srv.URL, WithRateLimit(0, 0))
	require.NoError(t, err)

	for range 5 {
		_, err := c.ListStocks(context.Background())
		var status *discipline.HTTPStatusError
		require.ErrorAs(t, err, &status)
	}
	// the circuit is now open: no request reaches the server.
	_, err = c.ListStocks(context.Background())
	var transport *discipline.TransportError
	require.ErrorAs(t, err, &transport)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, calls)
}

func TestClient_RequestID(t *testing.T) {
	ids := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(RequestIDHeader)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	for range 2 {
		_, err := c.ListStocks(context.Background())
		require.NoError(t, err)
	}
	first, second := <-ids, <-ids
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestClient_ListRulePlans_SkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":2,"stock_id":1,"version":2,"is_active":true,"rules":{},"created_at":"2025-01-06T09:30:00Z"},
			{"id":"oops","version":"x"},
			{"id":1,"stock_id":1,"version":1,"is_active":false,"rules":{},"created_at":"2025-01-05T09:30:00Z"}
		]`))
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	plans, err := c.ListRulePlans(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, 2, plans[0].Version)
	assert.Equal(t, 1, plans[1].Version)
}

func TestClient_Canceled(t *testing.T) {
	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListStocks(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
