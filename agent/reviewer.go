package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/etnz/discipline"
	"github.com/etnz/discipline/renderer"
	"google.golang.org/genai"
)

const model = "gemini-2.5-pro"

// Stores are the stores the reviewer tools read from.
type Stores interface {
	discipline.RulePlanStore
	discipline.PortfolioStore
}

// NewReviewer returns an expert reviewing rule plans, with read only access
// to stores.
func NewReviewer(stores Stores) *Expert {
	lib := Tools(stores)
	return &Expert{
		Name:        "Reviewer",
		Description: "Reviews trading rule plans for consistency and risk.",
		ModelName:   model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(lib)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You review the trading rule plans of a disciplined individual investor.
			A rule plan fixes, before any trade, the entry condition, the position size,
			the stop losses, the take-profit ladder and the behavior controls.

			Use the tools to read the rule plan, its history and the portfolio.
			Point out inconsistencies: a take-profit ladder whose sizes do not sum to 100%,
			a hard stop wider than the loss budget allows, a target size above the max size,
			a trailing stop tighter than the first take profit, or an entry condition that
			cannot be evaluated on end of day data.

			Be concise. Answer in markdown. Never invent figures the tools did not return.
			`}}},
		},
		Library: NewLibrary(lib),
	}
}

// Tools returns the functions exposing stores to a model.
func Tools(stores Stores) []Function {
	tickerArg := map[string]*genai.Schema{
		"ticker": {Type: genai.TypeString, Description: "The ticker of the stock, e.g. AAPL or 00700.HK."},
	}
	return []Function{
		&Func{
			Decl: &genai.FunctionDeclaration{
				Name:        "rule_plan",
				Description: "Returns a rule plan version of a stock as markdown, the active one unless a version is given.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"ticker":  tickerArg["ticker"],
						"version": {Type: genai.TypeInteger, Description: "The version to read. Defaults to the active one."},
					},
					Required: []string{"ticker"},
				},
				Response: &genai.Schema{Type: genai.TypeString, Description: "The rule plan, as markdown with its raw JSON document."},
			},
			Func: func(ctx context.Context, args map[string]any) (string, error) {
				return rulePlan(ctx, stores, args)
			},
		},
		&Func{
			Decl: &genai.FunctionDeclaration{
				Name:        "plan_history",
				Description: "Lists the rule plan versions of a stock, latest first.",
				Parameters:  &genai.Schema{Type: genai.TypeObject, Properties: tickerArg, Required: []string{"ticker"}},
				Response:    &genai.Schema{Type: genai.TypeString, Description: "A markdown table of versions."},
			},
			Func: func(ctx context.Context, args map[string]any) (string, error) {
				stock, err := findStock(ctx, stores, args)
				if err != nil {
					return "", err
				}
				plans, err := stores.ListRulePlans(ctx, stock.ID)
				if err != nil {
					return "", err
				}
				return renderer.RenderVersions(renderer.NewVersions(stock.Ticker, plans)), nil
			},
		},
		&Func{
			Decl: &genai.FunctionDeclaration{
				Name:        "portfolio",
				Description: "Lists the tracked stocks with their position and latest price.",
				Parameters:  &genai.Schema{Type: genai.TypeObject},
				Response:    &genai.Schema{Type: genai.TypeString, Description: "A markdown table of stocks."},
			},
			Func: func(ctx context.Context, args map[string]any) (string, error) {
				return portfolio(ctx, stores)
			},
		},
	}
}

// findStock returns the non archived stock named by the "ticker" argument.
func findStock(ctx context.Context, stores Stores, args map[string]any) (discipline.Stock, error) {
	raw, ok := args["ticker"].(string)
	if !ok {
		return discipline.Stock{}, fmt.Errorf("argument 'ticker' is not a string as expected but %T", args["ticker"])
	}
	stocks, err := stores.ListStocks(ctx)
	if err != nil {
		return discipline.Stock{}, err
	}
	for _, s := range stocks {
		if !s.Archived() && strings.EqualFold(s.Ticker, discipline.NormalizeTicker(raw, s.Market)) {
			return s, nil
		}
	}
	return discipline.Stock{}, fmt.Errorf("no stock with ticker %q", raw)
}

func rulePlan(ctx context.Context, stores Stores, args map[string]any) (string, error) {
	stock, err := findStock(ctx, stores, args)
	if err != nil {
		return "", err
	}
	plans, err := stores.ListRulePlans(ctx, stock.ID)
	if err != nil {
		return "", err
	}
	selected, ok := discipline.SelectActive(plans)
	if v, has := args["version"]; has {
		// JSON numbers are float64.
		f, isNumber := v.(float64)
		if !isNumber {
			return "", fmt.Errorf("argument 'version' is not a number as expected but %T", v)
		}
		ok = false
		for _, p := range plans {
			if p.Version == int(f) {
				selected, ok = p, true
			}
		}
	}
	if !ok {
		return "", fmt.Errorf("%s has no such rule plan", stock.Ticker)
	}
	return renderer.RenderPlan(renderer.NewPlan(stock.Ticker, selected), renderer.PlanRenderOptions{ShowRaw: true}), nil
}

// portfolio renders the visible stocks with the prices known right now.
func portfolio(ctx context.Context, stores Stores) (string, error) {
	stocks, err := stores.ListStocks(ctx)
	if err != nil {
		return "", err
	}
	snap := discipline.PortfolioSnapshot{Prices: discipline.PriceSnapshot{Prices: map[int]discipline.Price{}}}
	for _, s := range stocks {
		if !s.Archived() {
			snap.Stocks = append(snap.Stocks, s)
			snap.Prices.IDs = append(snap.Prices.IDs, s.ID)
		}
	}
	prices, err := stores.ListStockPrices(ctx)
	if err != nil {
		snap.Message = discipline.UserMessage("Price refresh failed", err)
	}
	for _, p := range prices {
		if p.Price.IsSet() {
			snap.Prices.Prices[p.ID] = p.Price
		}
	}
	return renderer.RenderPortfolio(renderer.NewPortfolio(snap)), nil
}
