package simulator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vignesh-goutham/orion/pkg/market"
	"github.com/vignesh-goutham/orion/pkg/trades"
)

func day(offset int) time.Time {
	return time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func bar(offset int, open, high, low, close float64) market.Bar {
	return market.Bar{Timestamp: day(offset), Open: open, High: high, Low: low, Close: close, Volume: 1000}
}

func TestResolveStopBeforeTargetOnSameBar(t *testing.T) {
	// Both levels touched within one bar must resolve as a stop.
	bars := []market.Bar{
		bar(0, 10, 12.5, 8.5, 11),
	}

	trade, err := Resolve(bars, 0,
		decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 5, Long)

	require.NoError(t, err)
	assert.Equal(t, trades.ClosedStopLoss, trade.Status)
	assert.True(t, trade.ClosePrice.Equal(decimal.NewFromInt(9)),
		"expected stop fill at 9, got %s", trade.ClosePrice)
	assert.True(t, trade.ProfitPct.Equal(decimal.NewFromInt(-10)),
		"expected -10%%, got %s", trade.ProfitPct)
	assert.Equal(t, 1, trade.HoldDays)
}

func TestResolveGapDownFillsAtOpen(t *testing.T) {
	bars := []market.Bar{
		bar(0, 10, 10.5, 9.8, 10.2),
		bar(1, 8.5, 9.0, 8.2, 8.8), // opens through the stop
	}

	trade, err := Resolve(bars, 0,
		decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 5, Long)

	require.NoError(t, err)
	assert.Equal(t, trades.ClosedStopLoss, trade.Status)
	assert.True(t, trade.ClosePrice.Equal(decimal.NewFromFloat(8.5)),
		"gap-down must fill at the open, got %s", trade.ClosePrice)
	assert.Equal(t, 2, trade.HoldDays)
	assert.Equal(t, day(1), trade.ClosedAt)
}

func TestResolveTargetTouch(t *testing.T) {
	bars := []market.Bar{
		bar(0, 10, 11, 9.5, 10.8),
		bar(1, 10.9, 12.3, 10.7, 12.1),
	}

	trade, err := Resolve(bars, 0,
		decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 5, Long)

	require.NoError(t, err)
	assert.Equal(t, trades.ClosedTakeProfit, trade.Status)
	assert.True(t, trade.ClosePrice.Equal(decimal.NewFromInt(12)))
	assert.True(t, trade.ProfitPct.Equal(decimal.NewFromInt(20)))
	assert.True(t, trade.IsWin())
}

func TestResolveExpiresAtClose(t *testing.T) {
	bars := []market.Bar{
		bar(0, 10, 10.4, 9.6, 10.1),
		bar(1, 10.1, 10.5, 9.7, 10.2),
		bar(2, 10.2, 10.6, 9.8, 10.3),
		bar(3, 10.3, 10.7, 9.9, 10.4), // never reached, hold capped at 3
	}

	trade, err := Resolve(bars, 0,
		decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 3, Long)

	require.NoError(t, err)
	assert.Equal(t, trades.ClosedExpired, trade.Status)
	assert.True(t, trade.ClosePrice.Equal(decimal.NewFromFloat(10.3)))
	assert.Equal(t, 3, trade.HoldDays)
	assert.Equal(t, day(2), trade.ClosedAt)
}

func TestResolveExpiresWhenBarsRunOut(t *testing.T) {
	bars := []market.Bar{
		bar(0, 10, 10.4, 9.6, 10.1),
		bar(1, 10.1, 10.5, 9.7, 10.2),
	}

	trade, err := Resolve(bars, 0,
		decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 30, Long)

	require.NoError(t, err)
	assert.Equal(t, trades.ClosedExpired, trade.Status)
	assert.True(t, trade.ClosePrice.Equal(decimal.NewFromFloat(10.2)))
	assert.Equal(t, 2, trade.HoldDays)
}

func TestResolveInvalidParameters(t *testing.T) {
	bars := []market.Bar{bar(0, 10, 11, 9, 10.5)}
	entry := decimal.NewFromInt(10)
	stop := decimal.NewFromInt(9)
	target := decimal.NewFromInt(12)

	tests := []struct {
		name     string
		bars     []market.Bar
		startIdx int
		entry    decimal.Decimal
		stop     decimal.Decimal
		target   decimal.Decimal
		maxHold  int
		dir      Direction
		wantErr  error
	}{
		{
			name: "short direction rejected",
			bars: bars, entry: entry, stop: stop, target: target, maxHold: 5, dir: Short,
			wantErr: ErrInvalidTradeParameters,
		},
		{
			name: "stop above entry",
			bars: bars, entry: entry, stop: decimal.NewFromInt(11), target: target, maxHold: 5,
			wantErr: ErrInvalidTradeParameters,
		},
		{
			name: "target below entry",
			bars: bars, entry: entry, stop: stop, target: decimal.NewFromFloat(9.5), maxHold: 5,
			wantErr: ErrInvalidTradeParameters,
		},
		{
			name: "zero stop",
			bars: bars, entry: entry, stop: decimal.Zero, target: target, maxHold: 5,
			wantErr: ErrInvalidTradeParameters,
		},
		{
			name: "zero hold budget",
			bars: bars, entry: entry, stop: stop, target: target, maxHold: 0,
			wantErr: ErrInvalidTradeParameters,
		},
		{
			name: "start index out of range",
			bars: bars, startIdx: 1, entry: entry, stop: stop, target: target, maxHold: 5,
			wantErr: ErrNoData,
		},
		{
			name: "no bars",
			bars: nil, entry: entry, stop: stop, target: target, maxHold: 5,
			wantErr: ErrNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade, err := Resolve(tt.bars, tt.startIdx, tt.entry, tt.stop, tt.target, tt.maxHold, tt.dir)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, trade)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	bars := []market.Bar{
		bar(0, 10, 11, 9.4, 10.8),
		bar(1, 10.8, 11.9, 10.2, 11.5),
		bar(2, 11.5, 12.4, 11.1, 12.2),
	}

	first, err := Resolve(bars, 0,
		decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 10, Long)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Resolve(bars, 0,
			decimal.NewFromInt(10), decimal.NewFromInt(9), decimal.NewFromInt(12), 10, Long)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
