// Package backend is the HTTP client of the discipline backend.
//
// It implements both discipline.RulePlanStore and discipline.PortfolioStore.
// Every failure is reported as one of discipline.TransportError,
// discipline.HTTPStatusError or discipline.DecodeError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/etnz/discipline"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a unique id per request, for server side logs.
const RequestIDHeader = "X-Request-Id"

// Client talks to the backend REST API. Its zero value is not usable, use New.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

var (
	_ discipline.RulePlanStore  = (*Client)(nil)
	_ discipline.PortfolioStore = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithTimeout sets the timeout of each request.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// WithRateLimit limits the client to rps requests per second. A non positive
// rps removes the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// New returns a client for the backend at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    u.Host,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// only an unavailable backend opens the circuit, not a rejected request.
		IsSuccessful: func(err error) bool {
			var status *discipline.HTTPStatusError
			if errors.As(err, &status) {
				return status.Code < 500
			}
			var decode *discipline.DecodeError
			return err == nil || errors.As(err, &decode) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("backend", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	})
	return c, nil
}

// URL returns the base url of the backend.
func (c *Client) URL() string { return c.base.String() }

// endpoint returns the absolute url of path with query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends a JSON request and decodes the JSON response into out, if not nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	addr := c.endpoint(path, query)
	if err := c.limiter.Wait(ctx); err != nil {
		return &discipline.TransportError{Method: method, URL: addr, Err: err}
	}
	body, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, method, addr, in)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &discipline.TransportError{Method: method, URL: addr, Err: err}
	}
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return &discipline.DecodeError{What: method + " " + path, Err: err}
	}
	return nil
}

// roundTrip performs a single request and returns the body of a 2xx response.
func (c *Client) roundTrip(ctx context.Context, method, addr string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request to %s: %w", addr, err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, addr, reqBody)
	if err != nil {
		return nil, fmt.Errorf("cannot create request to %s: %w", addr, err)
	}
	id := uuid.NewString()
	req.Header.Set(RequestIDHeader, id)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &discipline.TransportError{Method: method, URL: addr, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &discipline.TransportError{Method: method, URL: addr, Err: err}
	}
	log.Debug().
		Str("method", method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", id).
		Dur("elapsed", time.Since(start)).
		Msg("backend")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &discipline.HTTPStatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func stockPath(id int) string { return fmt.Sprintf("/stocks/%d", id) }

// ListStocks returns every stock, archived ones included.
func (c *Client) ListStocks(ctx context.Context) ([]discipline.Stock, error) {
	var stocks []discipline.Stock
	if err := c.do(ctx, http.MethodGet, "/stocks", nil, nil, &stocks); err != nil {
		return nil, err
	}
	return stocks, nil
}

// ListStockPrices returns the latest known price of every stock.
func (c *Client) ListStockPrices(ctx context.Context) ([]discipline.StockPrice, error) {
	var prices []discipline.StockPrice
	if err := c.do(ctx, http.MethodGet, "/stocks/prices", nil, nil, &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

// CreateStock adds a stock, or re-activates the stock with the same ticker.
func (c *Client) CreateStock(ctx context.Context, req discipline.StockCreate) (discipline.Stock, error) {
	var s discipline.Stock
	err := c.do(ctx, http.MethodPost, "/stocks", nil, req, &s)
	return s, err
}

// UpdateStock sends the fields set in req.
func (c *Client) UpdateStock(ctx context.Context, id int, req discipline.StockUpdate) (discipline.Stock, error) {
	var s discipline.Stock
	err := c.do(ctx, http.MethodPatch, stockPath(id), nil, req, &s)
	return s, err
}

// ArchiveStock archives a stock, the backend never deletes them.
func (c *Client) ArchiveStock(ctx context.Context, id int) (discipline.Stock, error) {
	var s discipline.Stock
	err := c.do(ctx, http.MethodDelete, stockPath(id), nil, nil, &s)
	return s, err
}

// ValidateTicker asks the backend whether ticker exists on market.
func (c *Client) ValidateTicker(ctx context.Context, ticker, market string) (discipline.TickerValidation, error) {
	var v discipline.TickerValidation
	q := url.Values{"market": {market}}
	err := c.do(ctx, http.MethodGet, "/stocks/validate/"+url.PathEscape(ticker), q, nil, &v)
	return v, err
}

// ListRulePlans returns the version history of a stock. Malformed entries are
// skipped with a warning, the others are still returned.
func (c *Client) ListRulePlans(ctx context.Context, stockID int) ([]discipline.RulePlan, error) {
	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, stockPath(stockID)+"/rule-plans", nil, nil, &raw); err != nil {
		return nil, err
	}
	plans := make([]discipline.RulePlan, 0, len(raw))
	for i, r := range raw {
		var p discipline.RulePlan
		if err := json.Unmarshal(r, &p); err != nil {
			log.Warn().Err(err).Int("stock", stockID).Int("index", i).Msg("skipping malformed rule plan")
			continue
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// CreateRulePlanVersion sends doc as is, the backend assigns the version.
func (c *Client) CreateRulePlanVersion(ctx context.Context, stockID int, doc json.RawMessage, notes string) (discipline.RulePlan, error) {
	var q url.Values
	if notes != "" {
		q = url.Values{"notes": {notes}}
	}
	var p discipline.RulePlan
	err := c.do(ctx, http.MethodPost, stockPath(stockID)+"/rule-plans/raw", q, doc, &p)
	return p, err
}
