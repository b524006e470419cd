// Package engine evaluates DCA campaigns and trailing-stop positions once
// per scheduler tick, isolating failures per item and reporting every
// outcome.
package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dcapilot/internal/domain"
	"dcapilot/internal/services/gateway"
	"dcapilot/internal/services/market"
	"dcapilot/pkg/retrier"
)

const (
	defaultQuoteAsset     = "USDT"
	defaultCandleInterval = "30m"
	defaultCandleLimit    = 200
	defaultEMAPeriod      = 89
)

// store is the persistence surface the engine consumes.
type store interface {
	ActiveCampaigns() []*domain.Campaign
	ActiveTrailingPositions() []*domain.Position
	Campaign(id string) (*domain.Campaign, error)
	Position(id string) (*domain.Position, error)
	SaveCampaign(c *domain.Campaign) error
	SavePosition(p *domain.Position) error
	AppendTradeRecord(rec domain.TradeRecord) error
}

// Config tunes the evaluation parameters. Zero values fall back to the
// defaults the strategy was designed with: EMA(89) over 200 30m candles.
type Config struct {
	QuoteAsset     string
	CandleInterval string
	CandleLimit    int
	EMAPeriod      int
	// FlattenOnClose submits a market order to flatten a position when its
	// trailing stop triggers. Disable when position exits are handled by an
	// external collaborator.
	FlattenOnClose bool
}

func (c Config) withDefaults() Config {
	if c.QuoteAsset == "" {
		c.QuoteAsset = defaultQuoteAsset
	}
	if c.CandleInterval == "" {
		c.CandleInterval = defaultCandleInterval
	}
	if c.CandleLimit == 0 {
		c.CandleLimit = defaultCandleLimit
	}
	if c.EMAPeriod == 0 {
		c.EMAPeriod = defaultEMAPeriod
	}
	return c
}

// Engine runs the per-tick evaluation of campaigns and protected positions.
type Engine struct {
	store    store
	provider market.Provider
	gateway  gateway.Gateway
	journal  *Journal
	retr     *retrier.Retrier
	cfg      Config
	l        *zap.Logger

	// now is injectable for tests.
	now func() time.Time
}

// New wires an engine from explicitly constructed dependencies.
func New(l *zap.Logger, st store, provider market.Provider, gw gateway.Gateway, journal *Journal, cfg Config) (*Engine, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if provider == nil {
		return nil, errors.New("market data provider is required")
	}
	if gw == nil {
		return nil, errors.New("order gateway is required")
	}
	if journal == nil {
		return nil, errors.New("order journal is required")
	}

	return &Engine{
		store:    st,
		provider: provider,
		gateway:  gw,
		journal:  journal,
		retr:     retrier.New(),
		cfg:      cfg.withDefaults(),
		l:        l,
		now:      time.Now,
	}, nil
}

// RunDCATick evaluates every active campaign once. Item failures become
// ERROR entries in the report; they never abort the batch.
func (e *Engine) RunDCATick(ctx context.Context) (*domain.TickReport, error) {
	report := domain.NewTickReport(e.now())

	for _, campaign := range e.store.ActiveCampaigns() {
		report.Add(e.evaluateCampaign(ctx, campaign))
	}

	e.l.Info("DCA tick finished",
		zap.Int("campaigns", len(report.Items)),
		zap.Int("executed", report.Executed),
		zap.Int("skipped", report.Skipped),
		zap.Int("completed", report.Completed),
		zap.Int("errors", report.Errors))

	return report, nil
}

// RunTrailingStopTick evaluates every active position with trailing
// protection enabled.
func (e *Engine) RunTrailingStopTick(ctx context.Context) (*domain.TickReport, error) {
	report := domain.NewTickReport(e.now())

	for _, position := range e.store.ActiveTrailingPositions() {
		report.Add(e.evaluatePosition(ctx, position))
	}

	e.l.Info("trailing stop tick finished",
		zap.Int("positions", len(report.Items)),
		zap.Int("updated", report.Updated),
		zap.Int("closed", report.Closed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors))

	return report, nil
}

// SetTrailingStop arms or disarms the trailing stop of a position. When
// arming without a reference price, the current market price is used.
func (e *Engine) SetTrailingStop(ctx context.Context, positionID string, enabled bool, distance, refPrice decimal.Decimal) (*domain.Position, error) {
	position, err := e.store.Position(positionID)
	if err != nil {
		return nil, err
	}

	if !enabled {
		if position.IsClosed() {
			return nil, errors.Wrapf(domain.ErrPositionClosed, "position %s", positionID)
		}
		position.DisableTrailingStop()
	} else {
		if refPrice.IsZero() {
			refPrice, err = retrier.DoWithData(e.retr, ctx, func(ctx context.Context) (decimal.Decimal, error) {
				return e.provider.GetCurrentPrice(ctx, position.Symbol)
			})
			if err != nil {
				return nil, errors.Wrapf(err, "failed to fetch reference price for %s", position.Symbol)
			}
		}
		if err := position.EnableTrailingStop(distance, refPrice); err != nil {
			return nil, err
		}
	}

	if err := e.store.SavePosition(position); err != nil {
		return nil, err
	}

	e.l.Info("trailing stop reconfigured",
		zap.String("position", positionID),
		zap.Bool("enabled", enabled),
		zap.String("distance", distance.String()),
		zap.String("stop", position.TrailingStop.String()))

	return position, nil
}
