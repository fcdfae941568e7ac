// Package discipline keeps a trader honest with the rules they wrote for
// themselves. It provides the building blocks of a client for a discipline
// stock monitoring backend.
//
// The core functionalities include:
//   - Rule Plans: a durable, versioned contract of entry, exit, risk and
//     behavior rules for a stock position. Plans are append-only: saving
//     always creates a new version, previous versions are never modified.
//   - Rule Editing: a lenient two-way transform between a human friendly Form
//     and the canonical RuleDocument (schema "1.3"), and the RulePlanEditor
//     that keeps both representations in sync with the remote store.
//   - Live Prices: the PriceRefresher annotates portfolio and status boards
//     with prices, coalescing redundant refreshes and retrying a bounded
//     number of times while prices are missing.
//
// Remote capabilities are consumed through the RulePlanStore and
// PortfolioStore interfaces. The backend package implements them over HTTP,
// the memstore package in memory.
package discipline
