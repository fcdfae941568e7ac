package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/etnz/discipline"
	"github.com/etnz/discipline/renderer"
	"github.com/google/subcommands"
)

type pricesCmd struct {
	retries int
	delay   time.Duration
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "fetch the latest prices" }
func (*pricesCmd) Usage() string {
	return `dsm prices [-retries <n>] [-delay <duration>]

  Fetches the latest price of every visible stock. While some prices are
  missing the fetch is retried, after a delay.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.retries, "retries", discipline.DefaultRetries, "Number of retries while prices are missing")
	f.DurationVar(&c.delay, "delay", discipline.DefaultRetryDelay, "Delay between retries")
}

func (c *pricesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stores, err := openStores()
	if err != nil {
		return fail("%v", err)
	}
	stocks, err := stores.ListStocks(ctx)
	if err != nil {
		return fail("%s", discipline.UserMessage("Failed to load portfolio", err))
	}
	var (
		visible []discipline.Stock
		ids     []int
	)
	for _, s := range stocks {
		if !s.Archived() {
			visible = append(visible, s)
			ids = append(ids, s.ID)
		}
	}

	r := discipline.NewPriceRefresher(stores, boardOptions...)
	r.Reset(ids)
	if err := r.Refresh(ctx, c.retries, c.delay); err != nil {
		if msg := r.Snapshot().Message; msg != "" {
			return fail("%s", msg)
		}
		return fail("%v", err)
	}
	snap := r.Snapshot()

	var b strings.Builder
	fmt.Fprintln(&b, "| Ticker | Price |")
	fmt.Fprintln(&b, "|:---|---:|")
	for _, s := range visible {
		fmt.Fprintf(&b, "| %s | %s |\n", s.Ticker, snap.Price(s.ID).Format(s.Currency))
	}
	if n := snap.Missing(); n > 0 {
		fmt.Fprintf(&b, "\n_%d price(s) missing._\n", n)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the trading status of every stock" }
func (*statusCmd) Usage() string {
	return `dsm status

  Shows whether an action is allowed on each visible stock, with its latest
  price.
`
}

func (*statusCmd) SetFlags(f *flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stores, err := openStores()
	if err != nil {
		return fail("%v", err)
	}
	b := discipline.NewStatusBoard(stores, boardOptions...)
	if err := b.Load(ctx); err != nil {
		return fail("%s", b.Snapshot().Message)
	}
	b.Wait()
	printMarkdown(renderer.RenderStatus(renderer.NewStatus(b.Snapshot())))
	return subcommands.ExitSuccess
}
