package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var posNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newLongPosition(t *testing.T) *Position {
	t.Helper()
	p, err := NewPosition("p1", "BTCUSDT", PositionSideLong,
		decimal.NewFromInt(100), decimal.NewFromInt(2), posNow.Add(-time.Hour))
	require.NoError(t, err)
	return p
}

func newShortPosition(t *testing.T) *Position {
	t.Helper()
	p, err := NewPosition("p1", "BTCUSDT", PositionSideShort,
		decimal.NewFromInt(100), decimal.NewFromInt(2), posNow.Add(-time.Hour))
	require.NoError(t, err)
	return p
}

func TestEnableTrailingStop_SeedsFromBestReference(t *testing.T) {
	p := newLongPosition(t)

	// reference below entry: the entry price is the better watermark
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(90)))
	require.True(t, p.HighestPrice.Equal(decimal.NewFromInt(100)))
	require.True(t, p.TrailingStop.Equal(decimal.NewFromInt(95)))

	// reference above entry pushes the watermark up
	p = newLongPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(120)))
	require.True(t, p.HighestPrice.Equal(decimal.NewFromInt(120)))
	require.True(t, p.TrailingStop.Equal(decimal.NewFromInt(114)))
}

func TestEnableTrailingStop_Validation(t *testing.T) {
	p := newLongPosition(t)

	require.Error(t, p.EnableTrailingStop(decimal.Zero, decimal.NewFromInt(100)))
	require.Error(t, p.EnableTrailingStop(decimal.NewFromInt(-5), decimal.NewFromInt(100)))
	require.Error(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.Zero))
	require.False(t, p.TrailingEnabled)
}

func TestApplyPrice_LongStopOnlyRises(t *testing.T) {
	p := newLongPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))

	prices := []int64{105, 103, 110, 107, 109}
	prevStop := p.TrailingStop

	for _, price := range prices {
		_, err := p.ApplyPrice(decimal.NewFromInt(price), posNow)
		require.NoError(t, err)
		require.True(t, p.TrailingStop.GreaterThanOrEqual(prevStop),
			"stop loosened from %s to %s at price %d", prevStop, p.TrailingStop, price)
		prevStop = p.TrailingStop
	}

	require.True(t, p.HighestPrice.Equal(decimal.NewFromInt(110)))
	require.True(t, p.TrailingStop.Equal(decimal.NewFromFloat(104.5)))
}

func TestApplyPrice_LongCloseSequence(t *testing.T) {
	p := newLongPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))

	event, err := p.ApplyPrice(decimal.NewFromInt(110), posNow)
	require.NoError(t, err)
	require.Equal(t, TrailingUpdated, event)
	require.True(t, p.TrailingStop.Equal(decimal.NewFromFloat(104.5)))

	// 104 is above entry but below the ratcheted stop
	event, err = p.ApplyPrice(decimal.NewFromInt(104), posNow)
	require.NoError(t, err)
	require.Equal(t, TrailingClosed, event)

	require.True(t, p.IsClosed())
	require.True(t, p.ExitPrice.Equal(decimal.NewFromInt(104)))
	require.Equal(t, posNow, p.ExitTime)
	require.True(t, p.PnL.Equal(decimal.NewFromInt(8)), "pnl is (104-100)*2, got %s", p.PnL)
	require.True(t, p.PnLPercent.Equal(decimal.NewFromInt(4)))
}

func TestApplyPrice_ShortMirrored(t *testing.T) {
	p := newShortPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))
	require.True(t, p.TrailingStop.Equal(decimal.NewFromInt(105)))

	event, err := p.ApplyPrice(decimal.NewFromInt(90), posNow)
	require.NoError(t, err)
	require.Equal(t, TrailingUpdated, event)
	require.True(t, p.LowestPrice.Equal(decimal.NewFromInt(90)))
	require.True(t, p.TrailingStop.Equal(decimal.NewFromFloat(94.5)), "short stop tightens downward")

	event, err = p.ApplyPrice(decimal.NewFromInt(95), posNow)
	require.NoError(t, err)
	require.Equal(t, TrailingClosed, event)
	require.True(t, p.PnL.Equal(decimal.NewFromInt(10)), "short profit is (100-95)*2, got %s", p.PnL)
	require.True(t, p.PnLPercent.Equal(decimal.NewFromInt(5)))
}

func TestApplyPrice_LosingClose(t *testing.T) {
	p := newLongPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))

	event, err := p.ApplyPrice(decimal.NewFromInt(94), posNow)
	require.NoError(t, err)
	require.Equal(t, TrailingClosed, event)
	require.True(t, p.PnL.Equal(decimal.NewFromInt(-12)), "loss is (94-100)*2, got %s", p.PnL)
	require.True(t, p.PnLPercent.Equal(decimal.NewFromInt(-6)))
}

func TestApplyPrice_ClosedPositionIsTerminal(t *testing.T) {
	p := newLongPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))

	_, err := p.ApplyPrice(decimal.NewFromInt(90), posNow)
	require.NoError(t, err)
	require.True(t, p.IsClosed())

	exitPrice := p.ExitPrice
	pnl := p.PnL

	_, err = p.ApplyPrice(decimal.NewFromInt(80), posNow.Add(time.Minute))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPositionClosed))
	require.True(t, p.ExitPrice.Equal(exitPrice), "exit fields are written exactly once")
	require.True(t, p.PnL.Equal(pnl))

	require.Error(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))
}

func TestApplyPrice_DisabledStopIsInert(t *testing.T) {
	p := newLongPosition(t)

	event, err := p.ApplyPrice(decimal.NewFromInt(50), posNow)
	require.NoError(t, err)
	require.Equal(t, TrailingNone, event)
	require.False(t, p.IsClosed(), "without trailing enabled no price can close the position")
}

func TestDisableTrailingStop_KeepsWatermarks(t *testing.T) {
	p := newLongPosition(t)
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(5), decimal.NewFromInt(100)))

	_, err := p.ApplyPrice(decimal.NewFromInt(130), posNow)
	require.NoError(t, err)

	p.DisableTrailingStop()
	require.False(t, p.TrailingEnabled)
	require.True(t, p.TrailingStop.IsZero())
	require.True(t, p.HighestPrice.Equal(decimal.NewFromInt(130)))

	// re-enabling with a lower reference resumes from the retained high
	require.NoError(t, p.EnableTrailingStop(decimal.NewFromInt(10), decimal.NewFromInt(100)))
	require.True(t, p.HighestPrice.Equal(decimal.NewFromInt(130)))
	require.True(t, p.TrailingStop.Equal(decimal.NewFromInt(117)))
}

func TestCloseSide(t *testing.T) {
	require.Equal(t, TradeSideSell, newLongPosition(t).CloseSide())
	require.Equal(t, TradeSideBuy, newShortPosition(t).CloseSide())
}
