package gateway

import (
	"context"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"dcapilot/internal/domain"
)

const binanceOrderNotFoundCode = -2013

// BinanceGateway executes spot market orders on Binance.
type BinanceGateway struct {
	client *binance.Client
}

// NewBinanceGateway creates a Binance order gateway.
func NewBinanceGateway(client *binance.Client) *BinanceGateway {
	return &BinanceGateway{client: client}
}

// AvailableBalance returns the free spot balance of the asset.
func (g *BinanceGateway) AvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, wrapExchangeError(err, "failed to get binance account balance")
	}

	for _, balance := range account.Balances {
		if balance.Asset == asset {
			free, err := decimal.NewFromString(balance.Free)
			if err != nil {
				return decimal.Zero, errors.Wrap(err, "failed to parse balance")
			}
			return free, nil
		}
	}

	return decimal.Zero, nil
}

// MarketBuy spends quoteAmount on a spot market buy, reporting the actual
// filled quantity and average price.
func (g *BinanceGateway) MarketBuy(ctx context.Context, symbol string, quoteAmount decimal.Decimal, clientOrderID string) (*Fill, error) {
	res, err := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(quoteAmount.RoundFloor(8).String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, wrapExchangeError(err, "binance market buy failed")
	}

	return fillFromCreateResponse(res)
}

// MarketSell sells quantity of base currency at market.
func (g *BinanceGateway) MarketSell(ctx context.Context, symbol string, quantity decimal.Decimal, clientOrderID string) (*Fill, error) {
	res, err := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideTypeSell).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.RoundFloor(8).String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, wrapExchangeError(err, "binance market sell failed")
	}

	return fillFromCreateResponse(res)
}

// FindOrder looks a spot order up by client order id. A missing order is
// reported as not found rather than as an error.
func (g *BinanceGateway) FindOrder(ctx context.Context, symbol, clientOrderID string) (*OrderStatus, error) {
	order, err := g.client.NewGetOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		if apiErr, ok := err.(*common.APIError); ok && apiErr.Code == binanceOrderNotFoundCode {
			return &OrderStatus{}, nil
		}
		return nil, wrapExchangeError(err, "failed to query binance order status")
	}

	executedQty, err := decimal.NewFromString(order.ExecutedQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quantity")
	}
	quoteSpent, err := decimal.NewFromString(order.CummulativeQuoteQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse cumulative quote quantity")
	}

	return &OrderStatus{
		Found:      true,
		Filled:     order.Status == binance.OrderStatusTypeFilled,
		Quantity:   executedQty,
		QuoteSpent: quoteSpent,
	}, nil
}

func fillFromCreateResponse(res *binance.CreateOrderResponse) (*Fill, error) {
	quantity, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse executed quantity")
	}
	quoteSpent, err := decimal.NewFromString(res.CummulativeQuoteQuantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse cumulative quote quantity")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, errors.Errorf("binance reported zero filled quantity for order %d", res.OrderID)
	}

	return &Fill{
		OrderID:  strconv.FormatInt(res.OrderID, 10),
		Quantity: quantity,
		Price:    quoteSpent.Div(quantity),
	}, nil
}

// wrapExchangeError converts Binance API rejections into the domain error
// type so callers can classify them without importing exchange packages.
func wrapExchangeError(err error, msg string) error {
	if apiErr, ok := err.(*common.APIError); ok {
		return errors.Wrap(&domain.ExchangeError{Code: apiErr.Code, Message: apiErr.Message}, msg)
	}
	return errors.Wrap(err, msg)
}
