package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dcapilot/internal/domain"
)

// evaluatePosition applies the current market price to one protected
// position: ratchet the stop, trigger it, or do nothing.
func (e *Engine) evaluatePosition(ctx context.Context, position *domain.Position) domain.ItemReport {
	item := domain.ItemReport{ItemID: position.ID, Symbol: position.Symbol}

	price, err := retryGet(e, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return e.provider.GetCurrentPrice(ctx, position.Symbol)
	})
	if err != nil {
		return itemError(item, errors.Wrapf(err, "failed to fetch current price for %s", position.Symbol))
	}

	event, err := position.ApplyPrice(price, e.now())
	if err != nil {
		return itemError(item, err)
	}

	switch event {
	case domain.TrailingUpdated:
		if err := e.store.SavePosition(position); err != nil {
			return itemError(item, err)
		}

		e.l.Info("trailing stop moved",
			zap.String("position", position.ID),
			zap.String("symbol", position.Symbol),
			zap.String("price", price.String()),
			zap.String("stop", position.TrailingStop.String()))

		item.Outcome = domain.OutcomeUpdated
		item.Detail = map[string]string{
			"price": price.String(),
			"stop":  position.TrailingStop.String(),
		}
		return item

	case domain.TrailingClosed:
		if e.cfg.FlattenOnClose {
			if err := e.flattenPosition(ctx, position, price); err != nil {
				// The close is not persisted, so the stop fires again next
				// tick and the flatten is retried.
				return itemError(item, errors.Wrapf(err, "failed to flatten position %s", position.ID))
			}
		}
		if err := e.store.SavePosition(position); err != nil {
			return itemError(item, err)
		}

		rec := domain.TradeRecord{
			Symbol:      position.Symbol,
			Side:        position.CloseSide(),
			Price:       price,
			Quantity:    position.Quantity,
			TotalAmount: position.Quantity.Mul(price),
			Reason:      "trailing stop triggered",
			Time:        e.now(),
		}
		if err := e.store.AppendTradeRecord(rec); err != nil {
			e.l.Warn("failed to persist exit trade record", zap.String("position", position.ID), zap.Error(err))
		}

		e.l.Info("trailing stop triggered",
			zap.String("position", position.ID),
			zap.String("symbol", position.Symbol),
			zap.String("exit_price", price.String()),
			zap.String("pnl", position.PnL.String()))

		item.Outcome = domain.OutcomeClosed
		item.Detail = map[string]string{
			"exit_price":  price.String(),
			"pnl":         position.PnL.String(),
			"pnl_percent": position.PnLPercent.Round(4).String(),
		}
		return item

	default:
		item.Outcome = domain.OutcomeSkipped
		item.Detail = map[string]string{
			"price": price.String(),
			"stop":  position.TrailingStop.String(),
		}
		return item
	}
}

// flattenPosition closes the position on the exchange with a market order.
func (e *Engine) flattenPosition(ctx context.Context, position *domain.Position, price decimal.Decimal) error {
	clientOrderID := uuid.New().String()

	var err error
	if position.CloseSide() == domain.TradeSideSell {
		_, err = e.gateway.MarketSell(ctx, position.Symbol, position.Quantity, clientOrderID)
	} else {
		// Shorts are bought back; market buys are quote-denominated.
		_, err = e.gateway.MarketBuy(ctx, position.Symbol, position.Quantity.Mul(price), clientOrderID)
	}
	return err
}
