package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of an executed trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// TradeRecord is one entry of the append-only audit trail. Records are
// written once per fill or closing event and never mutated.
type TradeRecord struct {
	Symbol      string          `json:"symbol"`
	Side        TradeSide       `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Reason      string          `json:"reason"`
	Time        time.Time       `json:"time"`
}
