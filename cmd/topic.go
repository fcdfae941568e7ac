package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/etnz/discipline/docs"
	"github.com/google/subcommands"
)

type topicCmd struct{}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `dsm topic [<topic>...]

  Shows documentation topics, '*' for all of them. Without a topic, shows the
  introduction and the list of topics.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 0 {
		doc, err := docs.GetTopics(f.Args()...)
		if err != nil {
			return fail("cannot read doc: %v", err)
		}
		printMarkdown(doc)
		return subcommands.ExitSuccess
	}

	readme, err := docs.GetTopic("readme")
	if err != nil {
		return fail("cannot read doc: %v", err)
	}
	topics, err := docs.GetAllTopics()
	if err != nil {
		return fail("cannot list topics: %v", err)
	}
	var b strings.Builder
	b.WriteString(readme)
	b.WriteString("\n## Topics\n\n")
	for _, t := range topics {
		title, err := docs.Title(t)
		if err != nil {
			title = t
		}
		fmt.Fprintf(&b, "- `%s`: %s\n", t, title)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
