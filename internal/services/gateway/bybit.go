package gateway

import (
	"context"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// BybitGateway executes spot market orders on Bybit. Bybit does not report
// fills on order creation, so the returned Fill carries the requested amount
// and no price; DCA campaigns, which need confirmed fills, require the
// Binance gateway. Trailing-stop closes only need the order to go through.
type BybitGateway struct {
	client *bybit.Client
}

// NewBybitGateway creates a Bybit order gateway.
func NewBybitGateway(client *bybit.Client) *BybitGateway {
	return &BybitGateway{client: client}
}

// AvailableBalance is not supported on Bybit.
func (g *BybitGateway) AvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, errors.Errorf("bybit balance lookup is not supported, use the binance platform for DCA campaigns (asset %s)", asset)
}

// MarketBuy submits a spot market buy. On Bybit spot, the quantity of a
// market buy is denominated in quote currency.
func (g *BybitGateway) MarketBuy(ctx context.Context, symbol string, quoteAmount decimal.Decimal, clientOrderID string) (*Fill, error) {
	quoteAmount = quoteAmount.RoundFloor(4)

	res, err := g.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(symbol),
		Side:        bybit.SideBuy,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         quoteAmount.String(),
		OrderLinkID: &clientOrderID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bybit buy order")
	}

	return &Fill{OrderID: res.Result.OrderID}, nil
}

// MarketSell sells quantity of base currency at market.
func (g *BybitGateway) MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal, clientOrderID string) (*Fill, error) {
	quantity = quantity.RoundFloor(4)

	res, err := g.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(symbol),
		Side:        bybit.SideSell,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         quantity.String(),
		OrderLinkID: &clientOrderID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bybit sell order")
	}

	return &Fill{OrderID: res.Result.OrderID, Quantity: quantity}, nil
}

// FindOrder is not supported on Bybit.
func (g *BybitGateway) FindOrder(ctx context.Context, symbol, clientOrderID string) (*OrderStatus, error) {
	return nil, errors.Errorf("bybit order lookup is not supported, use the binance platform for DCA campaigns (symbol %s)", symbol)
}
