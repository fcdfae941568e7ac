// Package cmd implements the dsm CLI: portfolio management, rule plan
// authoring and the live boards, on top of the backend client.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/discipline"
	"github.com/etnz/discipline/backend"
	"github.com/google/subcommands"
)

// Commands lists every dsm subcommand, with its group.
var Commands = []struct {
	Group   string
	Command subcommands.Command
}{
	{"portfolio", &stocksCmd{}},
	{"portfolio", &addStockCmd{}},
	{"portfolio", &archiveStockCmd{}},
	{"portfolio", &positionCmd{}},
	{"rule plans", &plansCmd{}},
	{"rule plans", &planCmd{}},
	{"rule plans", &editCmd{}},
	{"rule plans", &importCmd{}},
	{"rule plans", &exportCmd{}},
	{"rule plans", &reviewCmd{}},
	{"boards", &pricesCmd{}},
	{"boards", &statusCmd{}},
	{"help", &topicCmd{}},
	{"help", &sandboxCmd{}},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	for _, cmd := range Commands {
		c.Register(cmd.Command, cmd.Group)
	}
}

// stdout receives the commands output.
var stdout io.Writer = os.Stdout

// plainMarkdown disables the terminal rendering of markdown.
var plainMarkdown = false

// printMarkdown renders md for the terminal. It falls back to the raw
// markdown if it cannot be rendered.
func printMarkdown(md string) {
	if plainMarkdown {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(stdout, out)
			return
		}
	}
	fmt.Fprint(stdout, md)
}

// fail prints err and returns the failure status.
func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// usage prints a usage error.
func usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// Stores is the backend seen by the commands.
type Stores interface {
	discipline.RulePlanStore
	discipline.PortfolioStore
}

// openStores returns the backend configured by the global flags.
var openStores = func() (Stores, error) {
	return backend.New(config.APIURL,
		backend.WithTimeout(config.Timeout),
		backend.WithRateLimit(config.RateLimit, max(int(config.RateLimit), 1)),
	)
}

// findStock returns the stock with ticker. Archived stocks are found only
// when archived is set.
func findStock(ctx context.Context, stores discipline.PortfolioStore, ticker string, archived bool) (discipline.Stock, error) {
	stocks, err := stores.ListStocks(ctx)
	if err != nil {
		return discipline.Stock{}, err
	}
	for _, s := range stocks {
		if s.Archived() && !archived {
			continue
		}
		if strings.EqualFold(s.Ticker, discipline.NormalizeTicker(ticker, s.Market)) {
			return s, nil
		}
	}
	return discipline.Stock{}, fmt.Errorf("no stock with ticker %q", ticker)
}

// tickerArg returns the single ticker argument of f.
func tickerArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", fmt.Errorf("expected exactly one ticker")
	}
	return args[0], nil
}
