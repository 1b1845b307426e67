package simulator

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/orion/pkg/market"
	"github.com/vignesh-goutham/orion/pkg/trades"
)

var (
	// ErrInvalidTradeParameters is returned when entry/stop/target do not
	// describe a valid long setup (target > entry > stop, all positive).
	ErrInvalidTradeParameters = errors.New("invalid trade parameters")

	// ErrNoData is returned when no bars exist at or after the start index.
	ErrNoData = errors.New("no bars available to resolve trade")
)

// Direction of a position. Only long positions are supported.
type Direction int

const (
	Long Direction = iota
	Short
)

// Resolve walks forward through bars from startIdx (the bar immediately after
// the signal trigger) and decides how the position closes. Per-day precedence
// is fixed: gap-down open through the stop closes at the open, then a stop
// touch closes at the stop, then a target touch closes at the target, and the
// final allowed holding day closes at that day's close. A stop and target
// touch on the same bar always resolves as a stop; reordering this would
// overstate backtest performance.
//
// The walk is deterministic: identical inputs always produce an identical
// closed trade.
func Resolve(bars []market.Bar, startIdx int, entry, stop, target decimal.Decimal, maxHold int, dir Direction) (*trades.Trade, error) {
	if dir != Long {
		return nil, ErrInvalidTradeParameters
	}
	if !stop.IsPositive() || !entry.IsPositive() || !target.IsPositive() {
		return nil, ErrInvalidTradeParameters
	}
	if !target.GreaterThan(entry) || !entry.GreaterThan(stop) {
		return nil, ErrInvalidTradeParameters
	}
	if maxHold <= 0 {
		return nil, ErrInvalidTradeParameters
	}
	if startIdx < 0 || startIdx >= len(bars) {
		return nil, ErrNoData
	}

	lastIdx := startIdx + maxHold - 1
	if lastIdx >= len(bars) {
		lastIdx = len(bars) - 1
	}

	trade := &trades.Trade{
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		OpenedAt:   bars[startIdx].Timestamp,
	}

	for i := startIdx; i <= lastIdx; i++ {
		bar := bars[i]
		open := decimal.NewFromFloat(bar.Open)
		low := decimal.NewFromFloat(bar.Low)
		high := decimal.NewFromFloat(bar.High)

		switch {
		case open.LessThanOrEqual(stop):
			// Gapped through the stop overnight; the stop price was never
			// available, so fill at the open.
			return closeTrade(trade, bar, i-startIdx+1, open, trades.ClosedStopLoss), nil
		case low.LessThanOrEqual(stop):
			return closeTrade(trade, bar, i-startIdx+1, stop, trades.ClosedStopLoss), nil
		case high.GreaterThanOrEqual(target):
			return closeTrade(trade, bar, i-startIdx+1, target, trades.ClosedTakeProfit), nil
		case i == lastIdx:
			return closeTrade(trade, bar, i-startIdx+1, decimal.NewFromFloat(bar.Close), trades.ClosedExpired), nil
		}
	}

	return nil, ErrNoData
}

func closeTrade(t *trades.Trade, bar market.Bar, held int, price decimal.Decimal, status trades.CloseStatus) *trades.Trade {
	t.ClosedAt = bar.Timestamp
	t.ClosePrice = price
	t.Status = status
	t.HoldDays = held
	t.ProfitPct = trades.ProfitPercent(t.EntryPrice, price)
	return t
}
