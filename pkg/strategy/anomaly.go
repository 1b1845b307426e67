package strategy

import (
	"math"
	"time"

	"github.com/vignesh-goutham/orion/pkg/indicators"
	"github.com/vignesh-goutham/orion/pkg/market"
)

func init() {
	Register("anomaly", func(p Params) Strategy { return NewAdaptiveAnomaly(p) })
}

const (
	anomalyWarmup   = 30
	obvPeriod       = 20
	bandPeriod      = 20
	rsiPeriod       = 14
	ppoFast         = 12
	ppoSlow         = 26
	highLookback    = 20
	newsTrailing    = 30 * 24 * time.Hour
	loudShock       = 0.40
	quietShock      = 0.10
	resistTolerance = -0.005 // day return above this still counts as resisting
)

// AdaptiveAnomaly scores bars from three independent pillars (accumulation,
// sentiment shock, momentum exhaustion) with a regime selector picking the
// pillar weighting per bar. A divergence trap halves the raw score.
type AdaptiveAnomaly struct {
	params Params
}

// NewAdaptiveAnomaly builds the scorer. The reward/risk minimum is raised to
// 2.5 unless the caller tuned it explicitly.
func NewAdaptiveAnomaly(p Params) *AdaptiveAnomaly {
	if p.MinRiskReward == 0 {
		p.MinRiskReward = 2.5
	}
	return &AdaptiveAnomaly{params: p.withDefaults()}
}

func (a *AdaptiveAnomaly) Name() string { return "anomaly" }

// Evaluate walks the history once per bar and emits the score and fire series.
func (a *AdaptiveAnomaly) Evaluate(h History) (Evaluation, error) {
	n := len(h.Bars)
	eval := Evaluation{
		Scores: make([]float64, n),
		Fires:  make([]bool, n),
	}
	if n == 0 {
		return eval, nil
	}

	closes := market.Closes(h.Bars)
	rsi := indicators.RSISeries(closes, rsiPeriod)
	ppo := indicators.PPOSeries(closes, ppoFast, ppoSlow)

	for i := anomalyWarmup; i < n; i++ {
		accum := a.accumulationPillar(h.Bars[:i+1])
		shock, sentiment := a.sentimentPillar(h, i)
		momentum, trap := a.momentumPillar(h.Bars[:i+1], rsi[:i+1], ppo[:i+1])

		wA, wB, wC := regimeWeights(accum, shock)

		score := (wA*accum + wB*sentiment + wC*momentum) * 100
		if trap {
			score /= 2
		}
		eval.Scores[i] = score
		eval.Fires[i] = score >= a.params.FireThreshold
	}
	return eval, nil
}

// regimeWeights selects the pillar blend: strong accumulation on a quiet tape
// leans on accumulation and rewards the silence; a very loud sentiment shock
// dominates regardless of technical posture; everything else blends evenly.
func regimeWeights(accum, shock float64) (wA, wB, wC float64) {
	loudness := math.Abs(shock)
	switch {
	case accum >= 0.6 && loudness < quietShock:
		return 0.6, 0.1, 0.3
	case loudness >= loudShock:
		return 0.2, 0.6, 0.2
	default:
		return 1.0 / 3, 1.0 / 3, 1.0 / 3
	}
}

// accumulationPillar combines the volume-trend signal with volatility
// compression: quiet positive accumulation scores highest.
func (a *AdaptiveAnomaly) accumulationPillar(bars []market.Bar) float64 {
	slope := indicators.OBVSlope(bars, obvPeriod)
	volTrend := clamp01(slope * 4) // slope of +0.25 avg-volumes/bar saturates

	closes := market.Closes(bars)
	current := indicators.BandWidth(closes, bandPeriod)
	trailing := indicators.BandWidth(closes[:len(closes)-bandPeriod/2], bandPeriod)
	compression := 0.0
	if trailing > 0 {
		compression = clamp01(1 - current/trailing)
	}
	return clamp01(0.7*volTrend + 0.3*compression)
}

// sentimentPillar contrasts the latest news score with the trailing average.
// The shock is returned for the regime selector; the pillar value is earned
// only when price resists a negative shock.
func (a *AdaptiveAnomaly) sentimentPillar(h History, idx int) (shock, pillar float64) {
	asOf := h.Bars[idx].Timestamp
	var latest, trailingSum float64
	var haveLatest bool
	trailingCount := 0
	for _, ev := range h.News {
		if ev.Timestamp.After(asOf) {
			continue
		}
		if !haveLatest {
			latest = ev.Score
			haveLatest = true
			continue
		}
		if asOf.Sub(ev.Timestamp) <= newsTrailing {
			trailingSum += ev.Score
			trailingCount++
		}
	}
	if !haveLatest || trailingCount == 0 {
		return 0, 0
	}
	shock = latest - trailingSum/float64(trailingCount)

	if shock >= -quietShock {
		return shock, 0
	}
	dayReturn := 0.0
	if idx > 0 && h.Bars[idx-1].Close > 0 {
		dayReturn = h.Bars[idx].Close/h.Bars[idx-1].Close - 1
	}
	if dayReturn >= resistTolerance {
		// Bad news the tape shrugged off: someone is absorbing the supply.
		pillar = clamp01(-shock)
	}
	return shock, pillar
}

// momentumPillar reads the relative-strength oscillator and runs the
// price-oscillator divergence test. A fresh price high that the oscillator
// does not confirm flags the bar as a trap.
func (a *AdaptiveAnomaly) momentumPillar(bars []market.Bar, rsi, ppo []float64) (float64, bool) {
	i := len(bars) - 1
	start := i - highLookback
	if start < 0 {
		start = 0
	}

	prevHigh := start
	for j := start; j < i; j++ {
		if bars[j].High > bars[prevHigh].High {
			prevHigh = j
		}
	}
	newHigh := bars[i].High >= bars[prevHigh].High
	trap := newHigh && (rsi[i] < rsi[prevHigh] || ppo[i] < ppo[prevHigh])

	// Sweet spot: strength without exhaustion. RSI near 55 with a rising
	// oscillator scores best; deep oversold or overbought both score low.
	posture := 1 - math.Abs(rsi[i]-55)/45
	if ppo[i] > 0 {
		posture = clamp01(posture + 0.15)
	}
	return clamp01(posture), trap
}

// DeriveExecution builds the tactical plan for a firing bar.
func (a *AdaptiveAnomaly) DeriveExecution(h History, idx int) (*ExecutionPlan, error) {
	bars := h.Bars[:idx+1]
	closes := market.Closes(bars)
	shock, _ := a.sentimentPillar(h, idx)
	metrics := map[string]float64{
		"metric_obv_slope":  indicators.OBVSlope(bars, obvPeriod),
		"metric_band_width": indicators.BandWidth(closes, bandPeriod),
		"metric_rsi":        indicators.RSI(closes, rsiPeriod),
		"metric_news_shock": shock,
	}
	return derivePlan(h, idx, a.params, metrics)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
