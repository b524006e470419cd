package market

import (
	"context"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"dcapilot/internal/domain"
)

// BybitProvider implements Provider for Bybit spot. Candle history is not
// wired for Bybit, so DCA campaigns require a Binance market data provider;
// trailing-stop protection only needs GetCurrentPrice and works on both.
type BybitProvider struct {
	client *bybit.Client
}

// NewBybitProvider creates a Bybit market data provider.
func NewBybitProvider(client *bybit.Client) *BybitProvider {
	return &BybitProvider{client: client}
}

// GetCandles is not supported on Bybit.
func (p *BybitProvider) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.MarketCandle, error) {
	return nil, errors.Errorf("bybit candle history is not supported, use the binance platform for DCA campaigns (symbol %s)", symbol)
}

// GetCurrentPrice fetches the last spot ticker price from Bybit.
func (p *BybitProvider) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := bybit.SymbolV5(symbol)

	result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &sym,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch price from Bybit for %s", symbol)
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Errorf("bybit API returned empty prices for %s", symbol)
	}

	price, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to parse bybit price")
	}

	return price, nil
}
