package state

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"dcapilot/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestStore_SaveCampaign_VersionConflict(t *testing.T) {
	s := openTestStore(t)

	c, err := domain.NewCampaign("camp-1", "BTCUSDT", decimal.NewFromInt(100), 6)
	require.NoError(t, err)
	require.NoError(t, s.PutCampaign(c))

	first, err := s.Campaign("camp-1")
	require.NoError(t, err)
	second, err := s.Campaign("camp-1")
	require.NoError(t, err)

	first.Touch(time.Now())
	require.NoError(t, s.SaveCampaign(first))

	second.Touch(time.Now())
	err = s.SaveCampaign(second)
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestStore_ActiveCampaigns_FiltersAndSorts(t *testing.T) {
	s := openTestStore(t)

	for _, id := range []string{"b", "a", "c"} {
		c, err := domain.NewCampaign(id, "ETHUSDT", decimal.NewFromInt(50), 3)
		require.NoError(t, err)
		if id == "c" {
			c.Deactivate()
		}
		require.NoError(t, s.PutCampaign(c))
	}

	active := s.ActiveCampaigns()
	require.Len(t, active, 2)
	require.Equal(t, "a", active[0].ID)
	require.Equal(t, "b", active[1].ID)
}

func TestStore_ActiveTrailingPositions(t *testing.T) {
	s := openTestStore(t)

	protected, err := domain.NewPosition("pos-1", "BTCUSDT", domain.PositionSideLong,
		decimal.NewFromInt(100), decimal.NewFromInt(1), time.Now())
	require.NoError(t, err)
	require.NoError(t, protected.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))
	require.NoError(t, s.PutPosition(protected))

	bare, err := domain.NewPosition("pos-2", "BTCUSDT", domain.PositionSideLong,
		decimal.NewFromInt(100), decimal.NewFromInt(1), time.Now())
	require.NoError(t, err)
	require.NoError(t, s.PutPosition(bare))

	list := s.ActiveTrailingPositions()
	require.Len(t, list, 1)
	require.Equal(t, "pos-1", list[0].ID)
}

func TestStore_ReplayAfterReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)

	c, err := domain.NewCampaign("camp-1", "BTCUSDT", decimal.NewFromInt(100), 6)
	require.NoError(t, err)
	require.NoError(t, s.PutCampaign(c))

	loaded, err := s.Campaign("camp-1")
	require.NoError(t, err)
	require.NoError(t, loaded.RegisterFill(decimal.NewFromFloat(0.01), decimal.NewFromInt(10000), time.Now()))
	require.NoError(t, s.SaveCampaign(loaded))

	require.NoError(t, s.AppendTradeRecord(domain.TradeRecord{
		Symbol:      "BTCUSDT",
		Side:        domain.TradeSideBuy,
		Price:       decimal.NewFromInt(10000),
		Quantity:    decimal.NewFromFloat(0.01),
		TotalAmount: decimal.NewFromInt(100),
		Reason:      "DCA auto order #1",
		Time:        time.Now(),
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	replayed, err := reopened.Campaign("camp-1")
	require.NoError(t, err)
	require.Equal(t, 1, replayed.CurrentOrder)
	require.True(t, replayed.TotalInvested.Equal(decimal.NewFromInt(100)))

	trades := reopened.TradeRecords()
	require.Len(t, trades, 1)
	require.Equal(t, "DCA auto order #1", trades[0].Reason)
}

func TestStore_PutCampaignKeepsProgress(t *testing.T) {
	s := openTestStore(t)

	c, err := domain.NewCampaign("camp-1", "BTCUSDT", decimal.NewFromInt(100), 6)
	require.NoError(t, err)
	require.NoError(t, s.PutCampaign(c))

	loaded, err := s.Campaign("camp-1")
	require.NoError(t, err)
	require.NoError(t, loaded.RegisterFill(decimal.NewFromFloat(0.01), decimal.NewFromInt(10000), time.Now()))
	require.NoError(t, s.SaveCampaign(loaded))

	// seeding the same campaign again must not reset progress
	seed, err := domain.NewCampaign("camp-1", "BTCUSDT", decimal.NewFromInt(200), 8)
	require.NoError(t, err)
	require.NoError(t, s.PutCampaign(seed))

	current, err := s.Campaign("camp-1")
	require.NoError(t, err)
	require.Equal(t, 1, current.CurrentOrder)
	require.True(t, current.BaseAmount.Equal(decimal.NewFromInt(100)))

	current.Touch(time.Now())
	require.NoError(t, s.SaveCampaign(current))
}
