package discipline

import (
	"context"
	"encoding/json"
)

// RulePlanStore persists rule plan versions. It never updates a version in
// place: every creation appends a new, active, version.
type RulePlanStore interface {
	ListRulePlans(ctx context.Context, stockID int) ([]RulePlan, error)
	CreateRulePlanVersion(ctx context.Context, stockID int, doc json.RawMessage, notes string) (RulePlan, error)
}

// PortfolioStore persists the portfolio's stocks and serves their prices.
type PortfolioStore interface {
	ListStocks(ctx context.Context) ([]Stock, error)
	ListStockPrices(ctx context.Context) ([]StockPrice, error)
	CreateStock(ctx context.Context, req StockCreate) (Stock, error)
	UpdateStock(ctx context.Context, id int, req StockUpdate) (Stock, error)
	ArchiveStock(ctx context.Context, id int) (Stock, error)
	ValidateTicker(ctx context.Context, ticker, market string) (TickerValidation, error)
}

// PriceSource is the part of PortfolioStore a PriceRefresher needs.
type PriceSource interface {
	ListStockPrices(ctx context.Context) ([]StockPrice, error)
}
