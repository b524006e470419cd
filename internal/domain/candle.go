package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketCandle single OHLCV candlestick.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}

// ClosePrices extracts the closing prices of a candle series in order.
func ClosePrices(candles []MarketCandle) []decimal.Decimal {
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
