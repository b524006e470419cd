// Package clients constructs authenticated exchange API clients.
package clients

import (
	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
)

func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	return bybit.NewClient().WithAuth(apiKey, apiSecret)
}
