package strategy

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/orion/pkg/indicators"
	"github.com/vignesh-goutham/orion/pkg/market"
)

// ErrPlanRejected is returned when a firing bar cannot be turned into an
// acceptable trade: reward/risk below the strategy minimum, or no volatility
// unit available. Rejected candidates are never persisted.
var ErrPlanRejected = errors.New("execution plan rejected")

const (
	pullbackMinDist = 0.01 // level must sit at least 1% below price
	pullbackMaxDist = 0.05 // and no more than 5% below to be worth waiting for
	zoneHalfWidth   = 0.01
)

// dominantVolumeLevel finds the price level where the most volume clustered
// over the window, using coarse bins across the window's low/high range.
func dominantVolumeLevel(bars []market.Bar, bins int) float64 {
	if len(bars) == 0 {
		return 0
	}
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if hi <= lo {
		return lo
	}
	width := (hi - lo) / float64(bins)
	volume := make([]float64, bins)
	for _, b := range bars {
		mid := (b.High + b.Low + b.Close) / 3
		idx := int((mid - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		volume[idx] += b.Volume
	}
	best := 0
	for i, v := range volume {
		if v > volume[best] {
			best = i
		}
	}
	return lo + (float64(best)+0.5)*width
}

// derivePlan builds the tactical plan for a firing bar at idx: locate the
// dominant volume-clustering level, choose between waiting for a pullback to
// it or entering immediately, size stop/target from the ATR volatility unit,
// and derive the time budget from distance-to-target over the daily travel
// rate scaled by the regime multiplier.
func derivePlan(h History, idx int, p Params, metrics map[string]float64) (*ExecutionPlan, error) {
	if idx < 0 || idx >= len(h.Bars) {
		return nil, ErrPlanRejected
	}
	bars := h.Bars[:idx+1]
	price := bars[idx].Close
	atr := indicators.ATR(bars, p.ATRPeriod)
	if atr <= 0 || price <= 0 {
		return nil, ErrPlanRejected
	}

	lookback := p.ClusterLookback
	if lookback > len(bars) {
		lookback = len(bars)
	}
	level := dominantVolumeLevel(bars[len(bars)-lookback:], 20)

	entry := price
	immediate := true
	dist := (price - level) / price
	if dist > pullbackMinDist && dist <= pullbackMaxDist {
		// Close enough below to be worth waiting for a retest.
		entry = level
		immediate = false
	}

	stop := entry - p.StopATR*atr
	target := entry + p.TargetATR*atr

	// Enforce a minimum stop distance so a quiet tape cannot produce a
	// pathological reward/risk ratio.
	floor := math.Max(p.StopPctFloor*entry, p.StopAbsFloor)
	if entry-stop < floor {
		stop = entry - floor
	}
	if stop <= 0 || target <= entry {
		return nil, ErrPlanRejected
	}

	rr := (target - entry) / (entry - stop)
	if rr < p.MinRiskReward {
		return nil, ErrPlanRejected
	}

	// Time budget: bars needed for the target at one ATR of travel per day,
	// scaled by market posture, clamped to the strategy's holding window.
	ttl := int(math.Ceil((target - entry) / atr * h.Bias.RegimeMultiplier()))
	if ttl < p.TTLMinDays {
		ttl = p.TTLMinDays
	}
	if ttl > p.TTLMaxDays {
		ttl = p.TTLMaxDays
	}

	if metrics == nil {
		metrics = map[string]float64{}
	}
	metrics["metric_atr"] = atr
	metrics["metric_cluster_level"] = level
	metrics["metric_risk_reward"] = rr

	plan := &ExecutionPlan{
		Entry:      decimal.NewFromFloat(entry).Round(4),
		StopLoss:   decimal.NewFromFloat(stop).Round(4),
		TakeProfit: decimal.NewFromFloat(target).Round(4),
		RiskReward: decimal.NewFromFloat(rr).Round(2),
		TTLDays:    ttl,
		Immediate:  immediate,
		Metrics:    metrics,
	}
	if !immediate {
		bottom := decimal.NewFromFloat(level * (1 - zoneHalfWidth)).Round(4)
		top := decimal.NewFromFloat(level * (1 + zoneHalfWidth)).Round(4)
		plan.EntryZoneBottom = &bottom
		plan.EntryZoneTop = &top
	}
	return plan, nil
}
