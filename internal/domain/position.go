package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

// PositionSide represents the direction of a trading position.
type PositionSide int

const (
	// PositionSideLong represents a long position (buy to open).
	PositionSideLong PositionSide = iota
	// PositionSideShort represents a short position (sell to open).
	PositionSideShort
)

// String returns the string representation of the side.
func (s PositionSide) String() string {
	if s == PositionSideShort {
		return "SHORT"
	}
	return "LONG"
}

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	PositionStatusActive PositionStatus = "ACTIVE"
	PositionStatusClosed PositionStatus = "CLOSED"
)

// TrailingEvent is the outcome of applying a new price to a protected position.
type TrailingEvent int

const (
	// TrailingNone means the price moved neither past the stop nor past the watermark.
	TrailingNone TrailingEvent = iota
	// TrailingUpdated means the watermark advanced and the stop ratcheted with it.
	TrailingUpdated
	// TrailingClosed means the stop triggered and the position is now closed.
	TrailingClosed
)

// Position is an open or closed trading position, optionally protected by a
// trailing stop.
type Position struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       PositionSide    `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Status     PositionStatus  `json:"status"`
	OpenedAt   time.Time       `json:"opened_at"`

	ExitPrice  decimal.Decimal `json:"exit_price"`
	ExitTime   time.Time       `json:"exit_time"`
	PnL        decimal.Decimal `json:"pnl"`
	PnLPercent decimal.Decimal `json:"pnl_percent"`

	TrailingEnabled  bool            `json:"trailing_enabled"`
	TrailingDistance decimal.Decimal `json:"trailing_distance"`
	TrailingStop     decimal.Decimal `json:"trailing_stop"`

	// Watermarks since entry (or since the stop was first enabled). Retained
	// across disable/enable so re-enabling resumes from the prior extremum.
	HighestPrice decimal.Decimal `json:"highest_price"`
	LowestPrice  decimal.Decimal `json:"lowest_price"`

	// Version guards read-modify-write cycles against overlapping ticks.
	Version uint64 `json:"version"`
}

// NewPosition creates a validated active position without trailing protection.
func NewPosition(id, symbol string, side PositionSide, entryPrice, quantity decimal.Decimal, openedAt time.Time) (*Position, error) {
	if id == "" {
		return nil, errors.New("position id must not be empty")
	}
	if symbol == "" {
		return nil, errors.New("position symbol must not be empty")
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("entry price must be positive, got %s", entryPrice.String())
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity.String())
	}

	return &Position{
		ID:         id,
		Symbol:     symbol,
		Side:       side,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		Status:     PositionStatusActive,
		OpenedAt:   openedAt,
	}, nil
}

// IsClosed reports whether the position reached its terminal state.
func (p *Position) IsClosed() bool {
	return p.Status == PositionStatusClosed
}

// EnableTrailingStop arms the trailing stop with the given percent distance,
// seeding the watermark from the best of the existing extremum, the entry
// price and the reference price.
func (p *Position) EnableTrailingStop(distance, refPrice decimal.Decimal) error {
	if p.IsClosed() {
		return errors.Wrapf(ErrPositionClosed, "position %s", p.ID)
	}
	if distance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("trailing distance must be positive, got %s", distance.String())
	}
	if refPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("reference price must be positive, got %s", refPrice.String())
	}

	p.TrailingEnabled = true
	p.TrailingDistance = distance

	if p.Side == PositionSideShort {
		low := p.LowestPrice
		if low.IsZero() || p.EntryPrice.LessThan(low) {
			low = p.EntryPrice
		}
		if refPrice.LessThan(low) {
			low = refPrice
		}
		p.LowestPrice = low
		p.TrailingStop = shortStopFor(low, distance)
		return nil
	}

	high := decimal.Max(p.HighestPrice, p.EntryPrice, refPrice)
	p.HighestPrice = high
	p.TrailingStop = longStopFor(high, distance)

	return nil
}

// DisableTrailingStop disarms the stop. Watermarks are kept so a later enable
// resumes from the prior extremum.
func (p *Position) DisableTrailingStop() {
	p.TrailingEnabled = false
	p.TrailingDistance = decimal.Zero
	p.TrailingStop = decimal.Zero
}

// ApplyPrice advances the trailing-stop state machine with a new observed
// price. For longs the stop only ever rises, for shorts it only ever falls;
// crossing it closes the position exactly once.
func (p *Position) ApplyPrice(price decimal.Decimal, now time.Time) (TrailingEvent, error) {
	if p.IsClosed() {
		return TrailingNone, errors.Wrapf(ErrPositionClosed, "position %s", p.ID)
	}
	if !p.TrailingEnabled {
		return TrailingNone, nil
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return TrailingNone, fmt.Errorf("price must be positive, got %s", price.String())
	}

	if p.Side == PositionSideShort {
		if !p.TrailingStop.IsZero() && price.GreaterThanOrEqual(p.TrailingStop) {
			p.close(price, now)
			return TrailingClosed, nil
		}
		if price.LessThan(p.LowestPrice) {
			p.LowestPrice = price
			p.TrailingStop = shortStopFor(price, p.TrailingDistance)
			return TrailingUpdated, nil
		}
		return TrailingNone, nil
	}

	if !p.TrailingStop.IsZero() && price.LessThanOrEqual(p.TrailingStop) {
		p.close(price, now)
		return TrailingClosed, nil
	}
	if price.GreaterThan(p.HighestPrice) {
		p.HighestPrice = price
		p.TrailingStop = longStopFor(price, p.TrailingDistance)
		return TrailingUpdated, nil
	}

	return TrailingNone, nil
}

// close sets the exit fields exactly once.
func (p *Position) close(price decimal.Decimal, now time.Time) {
	p.Status = PositionStatusClosed
	p.ExitPrice = price
	p.ExitTime = now

	if p.Side == PositionSideShort {
		p.PnL = p.EntryPrice.Sub(price).Mul(p.Quantity)
		p.PnLPercent = p.EntryPrice.Sub(price).Div(p.EntryPrice).Mul(decimal.NewFromInt(percentageMultiplier))
		return
	}
	p.PnL = price.Sub(p.EntryPrice).Mul(p.Quantity)
	p.PnLPercent = price.Sub(p.EntryPrice).Div(p.EntryPrice).Mul(decimal.NewFromInt(percentageMultiplier))
}

// CloseSide returns the trade side that flattens the position.
func (p *Position) CloseSide() TradeSide {
	if p.Side == PositionSideShort {
		return TradeSideBuy
	}
	return TradeSideSell
}

func longStopFor(watermark, distance decimal.Decimal) decimal.Decimal {
	return watermark.Mul(decimal.NewFromInt(1).Sub(distance.Div(decimal.NewFromInt(percentageMultiplier))))
}

func shortStopFor(watermark, distance decimal.Decimal) decimal.Decimal {
	return watermark.Mul(decimal.NewFromInt(1).Add(distance.Div(decimal.NewFromInt(percentageMultiplier))))
}
