// Package gateway provides order execution against an exchange: balance
// checks, market orders and order lookup for startup reconciliation.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Fill describes a confirmed market order execution.
type Fill struct {
	OrderID string
	// Quantity is the filled amount in base currency.
	Quantity decimal.Decimal
	// Price is the average fill price.
	Price decimal.Decimal
}

// OrderStatus is the state of a previously submitted order, looked up by
// client order id.
type OrderStatus struct {
	Found    bool
	Filled   bool
	Quantity decimal.Decimal
	// QuoteSpent is the cumulative quote amount exchanged.
	QuoteSpent decimal.Decimal
}

// Gateway submits orders and reports balances for one exchange account.
type Gateway interface {
	// AvailableBalance returns the free balance of the given asset.
	AvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	// MarketBuy spends quoteAmount of quote currency on a market buy.
	// The clientOrderID doubles as an idempotency key on the exchange.
	MarketBuy(ctx context.Context, symbol string, quoteAmount decimal.Decimal, clientOrderID string) (*Fill, error)
	// MarketSell sells quantity of base currency at market.
	MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal, clientOrderID string) (*Fill, error)
	// FindOrder looks an order up by client order id.
	FindOrder(ctx context.Context, symbol, clientOrderID string) (*OrderStatus, error)
}
