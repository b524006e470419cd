package engine

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dcapilot/internal/services/gateway"
)

// ReconcilePending settles order intents left pending by a crash. Each
// intent id was handed to the exchange as the client order id, so order
// history tells whether the money actually moved.
func (e *Engine) ReconcilePending(ctx context.Context) error {
	pending := e.journal.Pending()
	if len(pending) == 0 {
		return nil
	}

	e.l.Info("reconciling pending order intents", zap.Int("count", len(pending)))

	for _, intent := range pending {
		if err := e.reconcileIntent(ctx, intent); err != nil {
			// The intent stays pending and is retried on the next startup.
			e.l.Warn("intent reconciliation failed",
				zap.String("intent", intent.ID),
				zap.String("campaign", intent.CampaignID),
				zap.Error(err))
		}
	}

	return nil
}

func (e *Engine) reconcileIntent(ctx context.Context, intent *OrderIntent) error {
	campaign, err := e.store.Campaign(intent.CampaignID)
	if err != nil {
		return errors.Wrapf(err, "failed to load campaign %s", intent.CampaignID)
	}

	// Progress past the intent's order index means the fill was already
	// applied before the crash; only the journal mark was lost.
	if campaign.CurrentOrder > intent.OrderIndex {
		e.l.Info("intent already applied, marking done",
			zap.String("intent", intent.ID),
			zap.String("campaign", campaign.ID),
			zap.Int("order_index", intent.OrderIndex))
		return e.journal.MarkDone(intent)
	}

	status, err := retryGet(e, ctx, func(ctx context.Context) (*gateway.OrderStatus, error) {
		return e.gateway.FindOrder(ctx, intent.Symbol, intent.ID)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to query order %s", intent.ID)
	}

	if !status.Found || !status.Filled || status.Quantity.IsZero() {
		e.l.Info("intent never executed, marking failed",
			zap.String("intent", intent.ID),
			zap.String("campaign", campaign.ID))
		return e.journal.MarkFailed(intent, errors.New("order not found or not filled on exchange"))
	}

	fill := &gateway.Fill{
		OrderID:  intent.ID,
		Quantity: status.Quantity,
		Price:    status.QuoteSpent.Div(status.Quantity),
	}
	if err := e.applyFill(campaign, intent, fill); err != nil {
		return errors.Wrapf(err, "failed to apply reconciled fill for campaign %s", campaign.ID)
	}

	e.l.Info("intent reconciled as executed",
		zap.String("intent", intent.ID),
		zap.String("campaign", campaign.ID),
		zap.String("quantity", status.Quantity.String()),
		zap.String("price", fill.Price.String()))

	return nil
}
