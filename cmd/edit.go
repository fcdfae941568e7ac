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

// formFlags maps the edit flags to the form fields they set.
var formFlags = []struct {
	name, usage string
	field       func(*discipline.Form) *string
}{
	{"strategy", "Strategy type (swing, position, momentum, breakout, value)", func(f *discipline.Form) *string { return &f.StrategyType }},
	{"max-holding", "Maximum holding days", func(f *discipline.Form) *string { return &f.MaxHoldingDays }},
	{"cooldown", "Cooldown days after an exit", func(f *discipline.Form) *string { return &f.CooldownDays }},
	{"target", "Target position size, e.g. 10%", func(f *discipline.Form) *string { return &f.TargetPct }},
	{"max", "Maximum position size, e.g. 15%", func(f *discipline.Form) *string { return &f.MaxPct }},
	{"entry", "Entry rule condition", func(f *discipline.Form) *string { return &f.EntryRule }},
	{"stop", "Hard stop below entry, e.g. 8%", func(f *discipline.Form) *string { return &f.StopLoss }},
	{"tp", "Take-profit gains, e.g. '8% / 15%'", func(f *discipline.Form) *string { return &f.TakeProfit }},
	{"tp-size", "Take-profit sizes, e.g. '50% / 50%'", func(f *discipline.Form) *string { return &f.TakeProfitSize }},
	{"trailing", "Trailing stop from peak, e.g. 6%", func(f *discipline.Form) *string { return &f.TrailingStop }},
	{"earnings-block", "Days blocked around earnings", func(f *discipline.Form) *string { return &f.EarningsBlockDays }},
	{"confirm-delay", "Confirmation delay in seconds", func(f *discipline.Form) *string { return &f.ConfirmationDelaySec }},
}

type editCmd struct {
	values   map[string]*string
	override string
	notes    string
	dryRun   bool
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "edit the rule plan of a stock" }
func (*editCmd) Usage() string {
	return `dsm edit [flags] <ticker>

  Opens the active rule plan of a stock as a form, or the default form if the
  stock has none, sets the fields given as flags and saves the result as a
  new version. Unreadable values get their default. See 'dsm topic percents'
  and 'dsm topic ladders' for the accepted formats.

`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	c.values = make(map[string]*string, len(formFlags))
	for _, ff := range formFlags {
		c.values[ff.name] = f.String(ff.name, "", ff.usage)
	}
	f.StringVar(&c.override, "override-reason", "", "Require an override reason (true or false)")
	f.StringVar(&c.notes, "notes", "", "Notes attached to the new version")
	f.BoolVar(&c.dryRun, "n", false, "Show the edited plan without saving it")
}

// edit applies the flags set on the command line to form.
func (c *editCmd) edit(f *flag.FlagSet, form *discipline.Form) error {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	for _, ff := range formFlags {
		if set[ff.name] {
			*ff.field(form) = *c.values[ff.name]
		}
	}
	if set["override-reason"] {
		b, err := strconv.ParseBool(c.override)
		if err != nil {
			return fmt.Errorf("invalid -override-reason %q", c.override)
		}
		form.RequireOverrideReason = b
	}
	return nil
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ticker, err := tickerArg(f.Args())
	if err != nil {
		return usage("%v", err)
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
	form := editor.Snapshot().Form
	if err := c.edit(f, &form); err != nil {
		return usage("%v", err)
	}
	editor.SetForm(form)

	if c.dryRun {
		doc, err := discipline.EncodeDocument(discipline.FormToDocument(form))
		if err != nil {
			return fail("%v", err)
		}
		draft := discipline.RulePlan{StockID: stock.ID, Version: discipline.NextVersion(editor.Snapshot().Versions), Rules: doc, Notes: c.notes}
		printMarkdown(renderer.RenderPlan(renderer.NewPlan(stock.Ticker, draft), renderer.PlanRenderOptions{}))
		return subcommands.ExitSuccess
	}

	p, err := editor.Save(ctx, c.notes)
	if err != nil {
		return fail("%s", editor.Snapshot().Message)
	}
	fmt.Fprintf(stdout, "Saved %s rule plan v%d\n", stock.Ticker, p.Version)
	return subcommands.ExitSuccess
}
