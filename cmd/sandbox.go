package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/etnz/discipline"
	"github.com/etnz/discipline/memstore"
	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"
)

// sandboxCmd serves an in-memory backend.
type sandboxCmd struct {
	addr   string
	prices string
	known  string
}

func (*sandboxCmd) Name() string     { return "sandbox" }
func (*sandboxCmd) Synopsis() string { return "serve an in-memory backend" }
func (*sandboxCmd) Usage() string {
	return `dsm sandbox [-addr <host:port>] [-prices AAPL=190.5,MSFT=410] [-known AAPL,MSFT]

  Serves an in-memory backend with the same routes and rules as the real
  one, until interrupted. Nothing is persisted. Point the other commands to
  it with -api or DSM_API_URL.
`
}

func (c *sandboxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "localhost:8000", "Address to listen on")
	f.StringVar(&c.prices, "prices", "", "Comma separated TICKER=price pairs")
	f.StringVar(&c.known, "known", "", "Comma separated valid US tickers, unset to accept any ticker as unverified")
}

// seed configures s from the flags.
func (c *sandboxCmd) seed(s *memstore.Store) error {
	for _, pair := range strings.Split(c.prices, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		ticker, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid price %q, expected TICKER=price", pair)
		}
		p, err := discipline.ParsePrice(value)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", pair, err)
		}
		s.SetPrice(strings.TrimSpace(ticker), p)
	}
	if c.known != "" {
		var tickers []string
		for _, t := range strings.Split(c.known, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tickers = append(tickers, t)
			}
		}
		s.SetKnownTickers(tickers...)
	}
	return nil
}

func (c *sandboxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store := memstore.New()
	if err := c.seed(store); err != nil {
		return usage("%v", err)
	}
	srv := &http.Server{Addr: c.addr, Handler: store.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	log.Info().Str("addr", c.addr).Msg("sandbox listening")
	fmt.Fprintf(stdout, "Sandbox backend on http://%s\n", c.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}
