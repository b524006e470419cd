package market

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"dcapilot/internal/domain"
)

// BinanceProvider implements Provider for Binance spot.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a Binance market data provider.
func NewBinanceProvider(client *binance.Client) *BinanceProvider {
	return &BinanceProvider{client: client}
}

// GetCandles fetches kline data from Binance.
func (p *BinanceProvider) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.MarketCandle, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	result := make([]domain.MarketCandle, len(klines))
	for i, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse open price at index %d", i)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse high price at index %d", i)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse low price at index %d", i)
		}
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		volume, err := decimal.NewFromString(k.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse volume at index %d", i)
		}

		result[i] = domain.MarketCandle{
			OpenTime:  time.Unix(0, k.OpenTime*int64(time.Millisecond)),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.Unix(0, k.CloseTime*int64(time.Millisecond)),
		}
	}

	return result, nil
}

// GetCurrentPrice fetches the last ticker price from Binance.
func (p *BinanceProvider) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch price from Binance for %s", symbol)
	}
	if len(prices) == 0 {
		return decimal.Zero, errors.Errorf("binance API returned empty prices for %s", symbol)
	}

	price, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to parse binance price")
	}

	return price, nil
}
