package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/etnz/discipline/agent"
	"github.com/google/subcommands"
	"google.golang.org/genai"
)

// reviewCmd asks Gemini to review a rule plan.
type reviewCmd struct {
	interactive bool
}

func (*reviewCmd) Name() string     { return "review" }
func (*reviewCmd) Synopsis() string { return "review a rule plan with Gemini" }
func (*reviewCmd) Usage() string {
	return `dsm review [-i] <ticker> [question...]

  Asks Gemini to review the active rule plan of a stock. The reviewer can
  read the rule plans, their history and the portfolio, it never changes
  them. With -i, the conversation goes on until 'bye'.

  The GEMINI_API_KEY environment variable must be set.
`
}

func (c *reviewCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.interactive, "i", false, "Keep the conversation going")
}

func (c *reviewCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		return usage("expected a ticker")
	}
	ticker := f.Arg(0)
	question := strings.Join(f.Args()[1:], " ")
	if question == "" {
		question = "Review the active rule plan and list its weaknesses."
	}
	prompt := fmt.Sprintf("Stock %s: %s", ticker, question)

	stores, err := openStores()
	if err != nil {
		return fail("%v", err)
	}
	if _, err := findStock(ctx, stores, ticker, false); err != nil {
		return fail("%v", err)
	}

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return fail("cannot initialize Gemini's client: %v", err)
	}

	var in io.Reader = strings.NewReader("bye\n")
	if c.interactive {
		in = os.Stdin
	}
	s := agent.New(stdout, in, agent.NewReviewer(stores))
	s.Print = func(w io.Writer, md string) { printMarkdown(md) }
	if err := s.Run(ctx, client, prompt); err != nil {
		return fail("review failed: %v", err)
	}
	return subcommands.ExitSuccess
}
