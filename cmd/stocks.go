package cmd

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/etnz/discipline"
	"github.com/etnz/discipline/renderer"
	"github.com/google/subcommands"
)

// boardOptions configure the price refresher of the boards.
var boardOptions []discipline.RefresherOption

// portfolioAction runs action on a loaded portfolio, then stops its price
// refresh.
func portfolioAction(ctx context.Context, action func(context.Context, Stores, *discipline.Portfolio) error) error {
	stores, err := openStores()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	p := discipline.NewPortfolio(stores, boardOptions...)
	defer p.Wait()
	defer cancel()
	return action(ctx, stores, p)
}

type stocksCmd struct{}

func (*stocksCmd) Name() string     { return "stocks" }
func (*stocksCmd) Synopsis() string { return "list the portfolio with live prices" }
func (*stocksCmd) Usage() string {
	return `dsm stocks

  Lists the tracked stocks, archived ones excluded, with their position and
  their latest price. Missing prices are fetched again twice, 4s apart.
`
}

func (*stocksCmd) SetFlags(f *flag.FlagSet) {}

func (*stocksCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	stores, err := openStores()
	if err != nil {
		return fail("%v", err)
	}
	p := discipline.NewPortfolio(stores, boardOptions...)
	if err := p.Load(ctx); err != nil {
		return fail("%s", p.Snapshot().Message)
	}
	p.Wait()
	printMarkdown(renderer.RenderPortfolio(renderer.NewPortfolio(p.Snapshot())))
	return subcommands.ExitSuccess
}

type addStockCmd struct {
	market   string
	currency string
	qty      int
	avg      string
}

func (*addStockCmd) Name() string     { return "add-stock" }
func (*addStockCmd) Synopsis() string { return "add a stock to the portfolio" }
func (*addStockCmd) Usage() string {
	return `dsm add-stock [-m <market>] [-c <currency>] [-qty <n> -avg <price>] <ticker>

  Adds a stock. The ticker is upper cased, Hong Kong codes are completed
  ("00700" is "00700.HK"). US tickers are checked with the backend, a ticker
  the backend cannot check is added anyway. Adding an archived ticker
  re-activates it.
`
}

func (c *addStockCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.market, "m", discipline.MarketUS, "Market of the stock (US, HK, CN)")
	f.StringVar(&c.currency, "c", "", "Currency of the stock, defaults to the market's currency")
	f.IntVar(&c.qty, "qty", -1, "Quantity held, if any")
	f.StringVar(&c.avg, "avg", "", "Average entry price of the position")
}

func (c *addStockCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
	}
	avg, err := discipline.ParsePrice(c.avg)
	if err != nil {
		return usage("invalid -avg: %v", err)
	}
	req := discipline.StockCreate{Ticker: ticker, Market: c.market, Currency: c.currency, AvgEntryPrice: avg}
	if c.qty >= 0 {
		qty := c.qty
		req.PositionQty = &qty
		req.PositionState = discipline.Flat
		if qty > 0 {
			req.PositionState = discipline.Holding
		}
	}

	var s discipline.Stock
	err = portfolioAction(ctx, func(ctx context.Context, stores Stores, p *discipline.Portfolio) error {
		var err error
		s, err = p.AddStock(ctx, req)
		if err != nil {
			return fmt.Errorf("%s", p.Snapshot().Message)
		}
		return nil
	})
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(stdout, "Added %s (id %d, %s, %s)\n", s.Ticker, s.ID, s.Market, s.Currency)
	return subcommands.ExitSuccess
}

type archiveStockCmd struct{}

func (*archiveStockCmd) Name() string     { return "archive-stock" }
func (*archiveStockCmd) Synopsis() string { return "archive a stock, keeping its history" }
func (*archiveStockCmd) Usage() string {
	return `dsm archive-stock <ticker>

  Archives a stock: it is hidden from the boards, its rule plans are kept.
`
}

func (*archiveStockCmd) SetFlags(f *flag.FlagSet) {}

func (*archiveStockCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
	}
	var s discipline.Stock
	err = portfolioAction(ctx, func(ctx context.Context, stores Stores, p *discipline.Portfolio) error {
		stock, err := findStock(ctx, stores, ticker, false)
		if err != nil {
			return err
		}
		if s, err = p.ArchiveStock(ctx, stock.ID); err != nil {
			return fmt.Errorf("%s", p.Snapshot().Message)
		}
		return nil
	})
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(stdout, "Archived %s\n", s.Ticker)
	return subcommands.ExitSuccess
}

type positionCmd struct {
	qty string
	avg string
}

func (*positionCmd) Name() string     { return "position" }
func (*positionCmd) Synopsis() string { return "update the position of a stock" }
func (*positionCmd) Usage() string {
	return `dsm position [-qty <n>] [-avg <price>] <ticker>

  Sets the quantity held and the average entry price of a stock. A zero
  quantity closes the position, the average entry price is kept.
`
}

func (c *positionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.qty, "qty", "", "Quantity held")
	f.StringVar(&c.avg, "avg", "", "Average entry price")
}

func (c *positionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
	}
	var qty *int
	if c.qty != "" {
		n, err := strconv.Atoi(c.qty)
		if err != nil || n < 0 {
			return usage("invalid -qty %q", c.qty)
		}
		qty = &n
	}
	avg, err := discipline.ParsePrice(c.avg)
	if err != nil {
		return usage("invalid -avg: %v", err)
	}
	var s discipline.Stock
	err = portfolioAction(ctx, func(ctx context.Context, stores Stores, p *discipline.Portfolio) error {
		stock, err := findStock(ctx, stores, ticker, false)
		if err != nil {
			return err
		}
		if s, err = p.UpdatePosition(ctx, stock.ID, qty, avg); err != nil {
			return fmt.Errorf("%s", p.Snapshot().Message)
		}
		return nil
	})
	if err != nil {
		return fail("%v", err)
	}
	q := "-"
	if s.PositionQty != nil {
		q = strconv.Itoa(*s.PositionQty)
	}
	fmt.Fprintf(stdout, "%s: %s, quantity %s, average entry %s\n", s.Ticker, s.PositionState, q, s.AvgEntryPrice.Format(s.Currency))
	return subcommands.ExitSuccess
}
