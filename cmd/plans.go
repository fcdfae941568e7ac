package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/etnz/discipline"
	"github.com/etnz/discipline/renderer"
	"github.com/google/subcommands"
)

// loadHistory returns the stock named ticker and its rule plan versions.
func loadHistory(ctx context.Context, ticker string) (discipline.Stock, []discipline.RulePlan, error) {
	stores, err := openStores()
	if err != nil {
		return discipline.Stock{}, nil, err
	}
	stock, err := findStock(ctx, stores, ticker, true)
	if err != nil {
		return discipline.Stock{}, nil, err
	}
	plans, err := stores.ListRulePlans(ctx, stock.ID)
	if err != nil {
		return stock, nil, fmt.Errorf("%s", discipline.UserMessage("Failed to load rule plan", err))
	}
	return stock, plans, nil
}

// selectVersion returns version of plans, or the one the editor would open
// if version is 0.
func selectVersion(plans []discipline.RulePlan, version int) (discipline.RulePlan, bool) {
	if version == 0 {
		return discipline.SelectActive(plans)
	}
	for _, p := range plans {
		if p.Version == version {
			return p, true
		}
	}
	return discipline.RulePlan{}, false
}

type plansCmd struct{}

func (*plansCmd) Name() string     { return "plans" }
func (*plansCmd) Synopsis() string { return "list the rule plan versions of a stock" }
func (*plansCmd) Usage() string {
	return `dsm plans <ticker>

  Lists the rule plan versions of a stock, latest first. The version the
  editor opens is in bold.
`
}

func (*plansCmd) SetFlags(f *flag.FlagSet) {}

func (*plansCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
	}
	stock, plans, err := loadHistory(ctx, ticker)
	if err != nil {
		return fail("%v", err)
	}
	if err := discipline.CheckVersions(plans); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	printMarkdown(renderer.RenderVersions(renderer.NewVersions(stock.Ticker, plans)))
	return subcommands.ExitSuccess
}

type planCmd struct {
	version  int
	raw      bool
	skipRisk bool
}

func (*planCmd) Name() string     { return "plan" }
func (*planCmd) Synopsis() string { return "show a rule plan" }
func (*planCmd) Usage() string {
	return `dsm plan [-version <n>] [-raw] [-skip-risk] <ticker>

  Shows the active rule plan of a stock, or the latest version if none is
  active.
`
}

func (c *planCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.version, "version", 0, "Version to show, defaults to the active one")
	f.BoolVar(&c.raw, "raw", false, "Append the raw JSON document")
	f.BoolVar(&c.skipRisk, "skip-risk", false, "Do not show the risk section")
}

func (c *planCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
	}
	stock, plans, err := loadHistory(ctx, ticker)
	if err != nil {
		return fail("%v", err)
	}
	p, ok := selectVersion(plans, c.version)
	if !ok {
		return fail("%s has no such rule plan", stock.Ticker)
	}
	opts := renderer.PlanRenderOptions{ShowRaw: c.raw, SkipRisk: c.skipRisk}
	printMarkdown(renderer.RenderPlan(renderer.NewPlan(stock.Ticker, p), opts))
	return subcommands.ExitSuccess
}

type exportCmd struct {
	version int
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "print the raw document of a rule plan" }
func (*exportCmd) Usage() string {
	return `dsm export [-version <n>] <ticker>

  Prints the JSON document of the active rule plan, pretty printed with
  sorted keys. A stock without a rule plan prints the default document.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.version, "version", 0, "Version to export, defaults to the active one")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
	}
	stock, plans, err := loadHistory(ctx, ticker)
	if err != nil {
		return fail("%v", err)
	}
	p, ok := selectVersion(plans, c.version)
	switch {
	case ok:
		fmt.Fprintln(stdout, discipline.FormatDocument(p.Rules))
	case c.version == 0:
		fmt.Fprintln(stdout, discipline.FormatDocument(discipline.FormToDocument(discipline.DefaultForm())))
	default:
		return fail("%s has no version %d", stock.Ticker, c.version)
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	notes string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "save a raw document as a new rule plan version" }
func (*importCmd) Usage() string {
	return `dsm import [-notes <text>] <ticker> <file>

  Saves the JSON document in file, or the standard input if file is "-", as
  a new active version of the stock's rule plan. The document must be a JSON
  object, no default is added to it.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.notes, "notes", "", "Notes attached to the new version")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usage("expected a ticker and a file")
	}
	ticker, file := f.Arg(0), f.Arg(1)
	var text []byte
	var err error
	if file == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(file)
	}
	if err != nil {
		return fail("%v", err)
	}

	stores, err := openStores()
	if err != nil {
		return fail("%v", err)
	}
	stock, err := findStock(ctx, stores, ticker, false)
	if err != nil {
		return fail("%v", err)
	}
	editor := discipline.NewRulePlanEditor(stores)
	if err := editor.Load(ctx, stock.ID); err != nil {
		return fail("%s", editor.Snapshot().Message)
	}
	editor.SwitchView(discipline.RawView)
	editor.SetRawText(strings.TrimSpace(string(text)))
	p, err := editor.Save(ctx, c.notes)
	if err != nil {
		return fail("%s", editor.Snapshot().Message)
	}
	fmt.Fprintf(stdout, "Saved %s rule plan v%d\n", stock.Ticker, p.Version)
	return subcommands.ExitSuccess
}
