package engine

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dcapilot/internal/domain"
	"dcapilot/internal/services/gateway"
	"dcapilot/pkg/retrier"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	campaigns map[string]*domain.Campaign
	positions map[string]*domain.Position
	trades    []domain.TradeRecord

	saveCampaignErr error
	savePositionErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns: make(map[string]*domain.Campaign),
		positions: make(map[string]*domain.Position),
	}
}

// The fake hands out copies, same as the real store, so unsaved mutations
// are never visible to later reads.
func (s *fakeStore) ActiveCampaigns() []*domain.Campaign {
	var out []*domain.Campaign
	for _, c := range s.campaigns {
		if c.IsActive {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ActiveTrailingPositions() []*domain.Position {
	var out []*domain.Position
	for _, p := range s.positions {
		if !p.IsClosed() && p.TrailingEnabled {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) Campaign(id string) (*domain.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, errors.Errorf("campaign %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) Position(id string) (*domain.Position, error) {
	p, ok := s.positions[id]
	if !ok {
		return nil, errors.Errorf("position %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) SaveCampaign(c *domain.Campaign) error {
	if s.saveCampaignErr != nil {
		return s.saveCampaignErr
	}
	cp := *c
	s.campaigns[c.ID] = &cp
	return nil
}

func (s *fakeStore) SavePosition(p *domain.Position) error {
	if s.savePositionErr != nil {
		return s.savePositionErr
	}
	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *fakeStore) AppendTradeRecord(rec domain.TradeRecord) error {
	s.trades = append(s.trades, rec)
	return nil
}

type fakeProvider struct {
	candles    map[string][]domain.MarketCandle
	candlesErr map[string]error
	prices     map[string]decimal.Decimal
	pricesErr  map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		candles:    make(map[string][]domain.MarketCandle),
		candlesErr: make(map[string]error),
		prices:     make(map[string]decimal.Decimal),
		pricesErr:  make(map[string]error),
	}
}

func (p *fakeProvider) GetCandles(_ context.Context, symbol, _ string, _ int) ([]domain.MarketCandle, error) {
	if err := p.candlesErr[symbol]; err != nil {
		return nil, err
	}
	return p.candles[symbol], nil
}

func (p *fakeProvider) GetCurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	if err := p.pricesErr[symbol]; err != nil {
		return decimal.Zero, err
	}
	return p.prices[symbol], nil
}

type buyCall struct {
	symbol        string
	quoteAmount   decimal.Decimal
	clientOrderID string
}

type sellCall struct {
	symbol        string
	quantity      decimal.Decimal
	clientOrderID string
}

type fakeGateway struct {
	balance decimal.Decimal

	buyFill *gateway.Fill
	buyErr  error
	buys    []buyCall

	sellErr error
	sells   []sellCall

	orders       map[string]*gateway.OrderStatus
	findErr      error
	findRequests []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string]*gateway.OrderStatus)}
}

func (g *fakeGateway) AvailableBalance(context.Context, string) (decimal.Decimal, error) {
	return g.balance, nil
}

func (g *fakeGateway) MarketBuy(_ context.Context, symbol string, quoteAmount decimal.Decimal, clientOrderID string) (*gateway.Fill, error) {
	g.buys = append(g.buys, buyCall{symbol: symbol, quoteAmount: quoteAmount, clientOrderID: clientOrderID})
	if g.buyErr != nil {
		return nil, g.buyErr
	}
	return g.buyFill, nil
}

func (g *fakeGateway) MarketSell(_ context.Context, symbol string, quantity decimal.Decimal, clientOrderID string) (*gateway.Fill, error) {
	g.sells = append(g.sells, sellCall{symbol: symbol, quantity: quantity, clientOrderID: clientOrderID})
	if g.sellErr != nil {
		return nil, g.sellErr
	}
	return &gateway.Fill{OrderID: clientOrderID, Quantity: quantity}, nil
}

func (g *fakeGateway) FindOrder(_ context.Context, _, clientOrderID string) (*gateway.OrderStatus, error) {
	g.findRequests = append(g.findRequests, clientOrderID)
	if g.findErr != nil {
		return nil, g.findErr
	}
	if status, ok := g.orders[clientOrderID]; ok {
		return status, nil
	}
	return &gateway.OrderStatus{}, nil
}

type testEnv struct {
	engine   *Engine
	store    *fakeStore
	provider *fakeProvider
	gateway  *fakeGateway
	journal  *Journal
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	journal, err := OpenJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	st := newFakeStore()
	provider := newFakeProvider()
	gw := newFakeGateway()

	eng, err := New(zap.NewNop(), st, provider, gw, journal, cfg)
	require.NoError(t, err)

	// no backoff pauses in tests
	eng.retr = retrier.New(retrier.WithInitialInterval(time.Millisecond), retrier.WithMaxRetries(0))
	eng.now = func() time.Time { return testNow }

	return &testEnv{engine: eng, store: st, provider: provider, gateway: gw, journal: journal}
}

// flatCandles builds a candle series with a constant close, so the EMA equals
// that close exactly.
func flatCandles(closePrice decimal.Decimal, n int) []domain.MarketCandle {
	candles := make([]domain.MarketCandle, n)
	openTime := testNow.Add(-time.Duration(n) * 30 * time.Minute)
	for i := range candles {
		candles[i] = domain.MarketCandle{
			OpenTime:  openTime.Add(time.Duration(i) * 30 * time.Minute),
			Open:      closePrice,
			High:      closePrice,
			Low:       closePrice,
			Close:     closePrice,
			CloseTime: openTime.Add(time.Duration(i+1) * 30 * time.Minute),
		}
	}
	return candles
}

func mustCampaign(t *testing.T, id, symbol string, base decimal.Decimal, maxOrders int) *domain.Campaign {
	t.Helper()
	c, err := domain.NewCampaign(id, symbol, base, maxOrders)
	require.NoError(t, err)
	return c
}

func mustPosition(t *testing.T, id, symbol string, side domain.PositionSide, entry, qty decimal.Decimal) *domain.Position {
	t.Helper()
	p, err := domain.NewPosition(id, symbol, side, entry, qty, testNow.Add(-time.Hour))
	require.NoError(t, err)
	return p
}
