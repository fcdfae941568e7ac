package cmd

import (
	"flag"

	"github.com/etnz/discipline/docs"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// argPredictors completes the positional arguments of some commands.
var argPredictors = map[string]complete.Predictor{
	"import": predict.Files("*.json"),
	"topic":  complete.PredictFunc(predictTopics),
}

func predictTopics(prefix string) []string {
	topics, err := docs.GetAllTopics()
	if err != nil {
		return nil
	}
	return topics
}

// Completion describes the dsm command line for shell completion. global
// holds the flags shared by every command.
func Completion(global *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command, len(Commands)),
		Flags: flagPredictors(global),
	}
	for _, c := range Commands {
		f := flag.NewFlagSet(c.Command.Name(), flag.ContinueOnError)
		c.Command.SetFlags(f)
		sub := &complete.Command{Flags: flagPredictors(f), Args: predict.Nothing}
		if p, ok := argPredictors[c.Command.Name()]; ok {
			sub.Args = p
		}
		root.Sub[c.Command.Name()] = sub
	}
	for _, name := range []string{"help", "flags", "commands"} {
		root.Sub[name] = &complete.Command{}
	}
	return root
}

// flagPredictors returns a predictor per flag of f. Boolean flags take no
// value.
func flagPredictors(f *flag.FlagSet) map[string]complete.Predictor {
	flags := make(map[string]complete.Predictor)
	if f == nil {
		return flags
	}
	f.VisitAll(func(fl *flag.Flag) {
		if b, ok := fl.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
			flags[fl.Name] = predict.Nothing
			return
		}
		flags[fl.Name] = predict.Something
	})
	return flags
}
