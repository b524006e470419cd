// Package market provides exchange market-data access: candle history and
// last traded prices.
package market

import (
	"context"

	"github.com/shopspring/decimal"

	"dcapilot/internal/domain"
)

// Provider supplies market data for one exchange.
type Provider interface {
	// GetCandles returns the most recent candles, oldest first.
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.MarketCandle, error)
	// GetCurrentPrice returns the last traded price for the symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
