package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dcapilot/internal/domain"
	"dcapilot/internal/services/gateway"
	"dcapilot/pkg/indicators"
	"dcapilot/pkg/retrier"
)

// evaluateCampaign runs one DCA decision for a single campaign and returns
// its report entry. The decision is: below the EMA(89) trend line, buy the
// next geometrically sized order; otherwise skip.
func (e *Engine) evaluateCampaign(ctx context.Context, campaign *domain.Campaign) domain.ItemReport {
	item := domain.ItemReport{ItemID: campaign.ID, Symbol: campaign.Symbol}

	if campaign.IsCompleted() {
		item.Outcome = domain.OutcomeCompleted
		item.Detail = map[string]string{
			"orders_placed":  strconv.Itoa(campaign.CurrentOrder),
			"total_invested": campaign.TotalInvested.String(),
		}
		return item
	}

	candles, err := retryGet(e, ctx, func(ctx context.Context) ([]domain.MarketCandle, error) {
		return e.provider.GetCandles(ctx, campaign.Symbol, e.cfg.CandleInterval, e.cfg.CandleLimit)
	})
	if err != nil {
		return itemError(item, errors.Wrapf(err, "failed to fetch candles for %s", campaign.Symbol))
	}

	ema, err := indicators.LastEMA(domain.ClosePrices(candles), e.cfg.EMAPeriod)
	if err != nil {
		return itemError(item, errors.Wrapf(err, "failed to compute EMA for %s", campaign.Symbol))
	}

	currentPrice, err := retryGet(e, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return e.provider.GetCurrentPrice(ctx, campaign.Symbol)
	})
	if err != nil {
		return itemError(item, errors.Wrapf(err, "failed to fetch current price for %s", campaign.Symbol))
	}

	if currentPrice.GreaterThanOrEqual(ema) {
		campaign.Touch(e.now())
		if err := e.store.SaveCampaign(campaign); err != nil {
			return itemError(item, err)
		}

		item.Outcome = domain.OutcomeSkipped
		item.Detail = map[string]string{
			"current_price":  currentPrice.String(),
			"ema":            ema.String(),
			"price_distance": priceDistancePercent(currentPrice, ema),
		}
		return item
	}

	amount := campaign.NextOrderAmount()

	balance, err := retryGet(e, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return e.gateway.AvailableBalance(ctx, e.cfg.QuoteAsset)
	})
	if err != nil {
		return itemError(item, errors.Wrapf(err, "failed to check %s balance", e.cfg.QuoteAsset))
	}
	if balance.LessThan(amount) {
		return itemError(item, errors.Wrapf(domain.ErrInsufficientBalance,
			"need %s %s, have %s", amount.String(), e.cfg.QuoteAsset, balance.String()))
	}

	intent, err := e.journal.Prepare(campaign.ID, campaign.Symbol, amount, campaign.CurrentOrder, e.now())
	if err != nil {
		return itemError(item, errors.Wrap(err, "failed to journal order intent"))
	}

	fill, err := e.gateway.MarketBuy(ctx, campaign.Symbol, amount, intent.ID)
	if err != nil {
		// The order may still have reached the exchange; the intent stays
		// pending and startup reconciliation settles it by client order id.
		e.l.Warn("market buy failed, intent left pending",
			zap.String("campaign", campaign.ID),
			zap.String("intent", intent.ID),
			zap.Error(err))
		return itemError(item, errors.Wrapf(err, "market buy failed for %s", campaign.Symbol))
	}

	if err := e.applyFill(campaign, intent, fill); err != nil {
		return itemError(item, err)
	}

	e.l.Info("DCA order executed",
		zap.String("campaign", campaign.ID),
		zap.String("symbol", campaign.Symbol),
		zap.Int("order", campaign.CurrentOrder),
		zap.String("amount", amount.String()),
		zap.String("price", fill.Price.String()))

	item.Outcome = domain.OutcomeExecuted
	item.Detail = map[string]string{
		"order_index":   strconv.Itoa(campaign.CurrentOrder),
		"quote_amount":  amount.String(),
		"fill_price":    fill.Price.String(),
		"fill_quantity": fill.Quantity.String(),
		"current_price": currentPrice.String(),
		"ema":           ema.String(),
	}
	return item
}

// applyFill commits a confirmed fill: campaign progress first, so a replayed
// intent is recognizable as already applied, then the trade record and the
// journal mark. A crash between the steps is healed by reconciliation.
func (e *Engine) applyFill(campaign *domain.Campaign, intent *OrderIntent, fill *gateway.Fill) error {
	now := e.now()

	if err := campaign.RegisterFill(fill.Quantity, fill.Price, now); err != nil {
		return err
	}
	if err := e.store.SaveCampaign(campaign); err != nil {
		return errors.Wrap(err, "failed to persist campaign progress")
	}

	rec := domain.TradeRecord{
		Symbol:      campaign.Symbol,
		Side:        domain.TradeSideBuy,
		Price:       fill.Price,
		Quantity:    fill.Quantity,
		TotalAmount: fill.Quantity.Mul(fill.Price),
		Reason:      fmt.Sprintf("DCA auto order #%d", campaign.CurrentOrder),
		Time:        now,
	}
	if err := e.store.AppendTradeRecord(rec); err != nil {
		e.l.Warn("failed to persist trade record", zap.String("campaign", campaign.ID), zap.Error(err))
	}

	if err := e.journal.MarkDone(intent); err != nil {
		e.l.Warn("failed to mark intent done", zap.String("intent", intent.ID), zap.Error(err))
	}

	return nil
}

// priceDistancePercent is how far price sits above the EMA, in percent.
func priceDistancePercent(price, ema decimal.Decimal) string {
	if ema.IsZero() {
		return "0"
	}
	return price.Sub(ema).Div(ema).Mul(decimal.NewFromInt(100)).Round(4).String()
}

func itemError(item domain.ItemReport, err error) domain.ItemReport {
	item.Outcome = domain.OutcomeError
	item.Error = err.Error()
	return item
}

// retryGet wraps a provider call with the engine's retry policy.
func retryGet[T any](e *Engine, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	return retrier.DoWithData(e.retr, ctx, fn)
}
