// Package domain defines the core entities of the bot: DCA campaigns,
// protected positions, trade records and tick reports.
package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// orderGrowthFactor multiplies every successive DCA order, so later orders
// deploy more capital the further price has fallen below trend.
var orderGrowthFactor = decimal.NewFromFloat(1.5)

// OrderAmount returns the quote amount for the order with the given
// zero-based index: base * 1.5^index.
func OrderAmount(base decimal.Decimal, index int) decimal.Decimal {
	return base.Mul(orderGrowthFactor.Pow(decimal.NewFromInt(int64(index))))
}

// Campaign is the persistent DCA configuration and progress state for one symbol.
type Campaign struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	MaxOrders     int             `json:"max_orders"`
	CurrentOrder  int             `json:"current_order"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	IsActive      bool            `json:"is_active"`
	LastCheck     time.Time       `json:"last_check"`

	// Version guards read-modify-write cycles against overlapping ticks.
	Version uint64 `json:"version"`
}

// NewCampaign creates a validated campaign with no orders placed yet.
func NewCampaign(id, symbol string, baseAmount decimal.Decimal, maxOrders int) (*Campaign, error) {
	if id == "" {
		return nil, errors.New("campaign id must not be empty")
	}
	if symbol == "" {
		return nil, errors.New("campaign symbol must not be empty")
	}
	if baseAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("baseAmount must be positive, got %s", baseAmount.String())
	}
	if maxOrders < 1 {
		return nil, fmt.Errorf("maxOrders must be >= 1, got %d", maxOrders)
	}

	return &Campaign{
		ID:            id,
		Symbol:        symbol,
		BaseAmount:    baseAmount,
		MaxOrders:     maxOrders,
		TotalInvested: decimal.Zero,
		IsActive:      true,
	}, nil
}

// IsCompleted reports whether the campaign placed all its orders.
// A completed campaign is terminal regardless of IsActive.
func (c *Campaign) IsCompleted() bool {
	return c.CurrentOrder >= c.MaxOrders
}

// NextOrderAmount returns the quote amount of the order the campaign would
// place next.
func (c *Campaign) NextOrderAmount() decimal.Decimal {
	return OrderAmount(c.BaseAmount, c.CurrentOrder)
}

// RegisterFill applies a confirmed fill: advances the order counter and adds
// the actually spent quote amount to the invested total.
func (c *Campaign) RegisterFill(quantity, fillPrice decimal.Decimal, now time.Time) error {
	if c.IsCompleted() {
		return errors.Wrapf(ErrCampaignCompleted, "campaign %s at %d/%d orders", c.ID, c.CurrentOrder, c.MaxOrders)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("fill quantity must be positive, got %s", quantity.String())
	}
	if fillPrice.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("fill price must be positive, got %s", fillPrice.String())
	}

	c.CurrentOrder++
	c.TotalInvested = c.TotalInvested.Add(quantity.Mul(fillPrice))
	c.LastCheck = now

	return nil
}

// Touch records an evaluation that placed no order.
func (c *Campaign) Touch(now time.Time) {
	c.LastCheck = now
}

// Deactivate flips the active flag. Campaigns are never deleted.
func (c *Campaign) Deactivate() {
	c.IsActive = false
}
