package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOrderAmount_GeometricGrowth(t *testing.T) {
	base := decimal.NewFromInt(100)

	require.True(t, OrderAmount(base, 0).Equal(decimal.NewFromInt(100)))
	require.True(t, OrderAmount(base, 1).Equal(decimal.NewFromInt(150)))
	require.True(t, OrderAmount(base, 2).Equal(decimal.NewFromInt(225)))
	require.True(t, OrderAmount(base, 3).Equal(decimal.NewFromFloat(337.5)))

	// consecutive orders keep the exact 1.5 ratio
	for i := 0; i < 10; i++ {
		ratio := OrderAmount(base, i+1).Div(OrderAmount(base, i))
		require.True(t, ratio.Equal(decimal.NewFromFloat(1.5)), "ratio at index %d is %s", i, ratio)
	}
}

func TestNewCampaign_Validation(t *testing.T) {
	_, err := NewCampaign("", "BTCUSDT", decimal.NewFromInt(100), 5)
	require.Error(t, err)

	_, err = NewCampaign("c1", "", decimal.NewFromInt(100), 5)
	require.Error(t, err)

	_, err = NewCampaign("c1", "BTCUSDT", decimal.Zero, 5)
	require.Error(t, err)

	_, err = NewCampaign("c1", "BTCUSDT", decimal.NewFromInt(-10), 5)
	require.Error(t, err)

	_, err = NewCampaign("c1", "BTCUSDT", decimal.NewFromInt(100), 0)
	require.Error(t, err)

	c, err := NewCampaign("c1", "BTCUSDT", decimal.NewFromInt(100), 5)
	require.NoError(t, err)
	require.True(t, c.IsActive)
	require.Equal(t, 0, c.CurrentOrder)
	require.True(t, c.TotalInvested.IsZero())
}

func TestCampaign_RegisterFill(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	c, err := NewCampaign("c1", "BTCUSDT", decimal.NewFromInt(100), 2)
	require.NoError(t, err)
	require.True(t, c.NextOrderAmount().Equal(decimal.NewFromInt(100)))

	err = c.RegisterFill(decimal.NewFromFloat(0.002), decimal.NewFromInt(49000), now)
	require.NoError(t, err)
	require.Equal(t, 1, c.CurrentOrder)
	require.True(t, c.TotalInvested.Equal(decimal.NewFromInt(98)))
	require.True(t, c.NextOrderAmount().Equal(decimal.NewFromInt(150)), "second order grows by 1.5")
	require.False(t, c.IsCompleted())

	err = c.RegisterFill(decimal.NewFromFloat(0.003), decimal.NewFromInt(48000), now)
	require.NoError(t, err)
	require.True(t, c.IsCompleted(), "campaign completes at its order cap")

	err = c.RegisterFill(decimal.NewFromFloat(0.001), decimal.NewFromInt(47000), now)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCampaignCompleted))
	require.Equal(t, 2, c.CurrentOrder, "a completed campaign never advances")
}

func TestCampaign_RegisterFillValidation(t *testing.T) {
	now := time.Now()

	c, err := NewCampaign("c1", "BTCUSDT", decimal.NewFromInt(100), 5)
	require.NoError(t, err)

	require.Error(t, c.RegisterFill(decimal.Zero, decimal.NewFromInt(49000), now))
	require.Error(t, c.RegisterFill(decimal.NewFromFloat(0.002), decimal.Zero, now))
	require.Equal(t, 0, c.CurrentOrder)
}
