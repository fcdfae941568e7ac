package renderer

import (
	"strconv"

	"github.com/etnz/discipline"
)

// Plan is the view of one rule plan version.
type Plan struct {
	Ticker    string
	Version   int
	Active    bool
	Notes     string
	CreatedAt string
	// Invalid is set when the stored rules are not a JSON object, Doc then
	// holds the default document.
	Invalid bool
	Doc     discipline.RuleDocument
	Raw     string
}

// NewPlan returns the view of p, a version of ticker's rule plan.
//
// The stored rules are read leniently: missing or unreadable fields show
// their default value.
func NewPlan(ticker string, p discipline.RulePlan) *Plan {
	v := &Plan{
		Ticker:    ticker,
		Version:   p.Version,
		Active:    p.IsActive,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt.String(),
	}
	form := discipline.DefaultForm()
	obj, err := discipline.ParseDocument(string(p.Rules))
	if err != nil {
		v.Invalid = true
		v.Raw = string(p.Rules)
	} else {
		form = discipline.DocumentToForm(obj).Apply(form)
		v.Raw = discipline.FormatDocument(obj)
	}
	v.Doc = discipline.FormToDocument(form)
	return v
}

// Versions is the view of a stock's rule plan history, latest first.
type Versions struct {
	Ticker   string
	Versions []discipline.RulePlan
	// Selected is the version the editor would open, 0 if none.
	Selected int
}

// NewVersions returns the view of plans.
func NewVersions(ticker string, plans []discipline.RulePlan) *Versions {
	v := &Versions{Ticker: ticker, Versions: plans}
	if p, ok := discipline.SelectActive(plans); ok {
		v.Selected = p.Version
	}
	return v
}

// Footer is the refresh state shared by the boards.
type Footer struct {
	Refreshing bool
	Missing    int
	Message    string
}

func newFooter(prices discipline.PriceSnapshot, message string) Footer {
	if message == "" {
		message = prices.Message
	}
	return Footer{Refreshing: prices.Refreshing, Missing: prices.Missing(), Message: message}
}

// PortfolioRow is a visible stock with its live price.
type PortfolioRow struct {
	Ticker   string
	Market   string
	State    string
	Quantity string
	AvgEntry string
	Price    string
	// Change is the gain of the price over the average entry price.
	Change string
}

// Portfolio is the view of the portfolio board.
type Portfolio struct {
	Rows []PortfolioRow
	Footer
}

// NewPortfolio returns the view of a portfolio snapshot.
func NewPortfolio(s discipline.PortfolioSnapshot) *Portfolio {
	v := &Portfolio{Footer: newFooter(s.Prices, s.Message)}
	for _, st := range s.Stocks {
		price := s.Prices.Price(st.ID)
		row := PortfolioRow{
			Ticker:   st.Ticker,
			Market:   st.Market,
			State:    st.PositionState,
			Quantity: "-",
			AvgEntry: st.AvgEntryPrice.Format(st.Currency),
			Price:    price.Format(st.Currency),
			Change:   "-",
		}
		if st.PositionQty != nil {
			row.Quantity = strconv.Itoa(*st.PositionQty)
		}
		row.Change = change(st.AvgEntryPrice, price)
		v.Rows = append(v.Rows, row)
	}
	return v
}

// change returns the signed relative change from entry to price, "-" if
// either is unknown.
func change(entry, price discipline.Price) string {
	e, ok := entry.Decimal()
	if !ok || e.IsZero() {
		return "-"
	}
	p, ok := price.Decimal()
	if !ok {
		return "-"
	}
	return discipline.Percent(p.Sub(e).Div(e).InexactFloat64()).SignedString()
}

// StatusRow is the trading status of a visible stock.
type StatusRow struct {
	Ticker string
	State  string
	Reason string
	Price  string
	Action string
}

// Status is the view of the status board.
type Status struct {
	Rows []StatusRow
	Footer
}

// NewStatus returns the view of a status snapshot.
func NewStatus(s discipline.StatusSnapshot) *Status {
	v := &Status{Footer: newFooter(s.Prices, s.Message)}
	for _, st := range s.Statuses {
		action := "no"
		if st.ActionAllowed {
			action = "yes"
		}
		v.Rows = append(v.Rows, StatusRow{
			Ticker: st.Ticker,
			State:  st.State,
			Reason: st.Reason,
			Price:  s.Prices.Price(st.ID).String(),
			Action: action,
		})
	}
	return v
}
