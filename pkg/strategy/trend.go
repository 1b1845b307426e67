package strategy

import (
	"github.com/vignesh-goutham/orion/pkg/indicators"
	"github.com/vignesh-goutham/orion/pkg/market"
)

func init() {
	Register("trend", func(p Params) Strategy { return NewTrendPullback(p) })
}

const (
	trendWarmup  = 50
	fastSMA      = 20
	slowSMA      = 50
	pullbackRSlo = 35
	pullbackRShi = 55
)

// TrendPullback is the baseline strategy: buy shallow pullbacks inside an
// established uptrend. Kept deliberately simple as a benchmark for the
// anomaly scorer.
type TrendPullback struct {
	params Params
}

func NewTrendPullback(p Params) *TrendPullback {
	return &TrendPullback{params: p.withDefaults()}
}

func (t *TrendPullback) Name() string { return "trend" }

func (t *TrendPullback) Evaluate(h History) (Evaluation, error) {
	n := len(h.Bars)
	eval := Evaluation{
		Scores: make([]float64, n),
		Fires:  make([]bool, n),
	}
	closes := market.Closes(h.Bars)

	for i := trendWarmup; i < n; i++ {
		window := closes[:i+1]
		fast := indicators.SMA(window, fastSMA)
		slow := indicators.SMA(window, slowSMA)
		price := closes[i]
		if slow <= 0 || fast <= slow || price <= 0 {
			continue
		}

		score := 40.0 // uptrend established

		// Pullback depth toward the fast average, without breaking it.
		depth := (fast - price) / fast
		if depth > 0 && depth < 0.03 {
			score += 30
		}

		rsi := indicators.RSI(window, rsiPeriod)
		if rsi >= pullbackRSlo && rsi <= pullbackRShi {
			score += 30
		}

		eval.Scores[i] = score
		eval.Fires[i] = score >= t.params.FireThreshold
	}
	return eval, nil
}

func (t *TrendPullback) DeriveExecution(h History, idx int) (*ExecutionPlan, error) {
	closes := market.Closes(h.Bars[:idx+1])
	metrics := map[string]float64{
		"metric_rsi":   indicators.RSI(closes, rsiPeriod),
		"metric_sma20": indicators.SMA(closes, fastSMA),
		"metric_sma50": indicators.SMA(closes, slowSMA),
	}
	return derivePlan(h, idx, t.params, metrics)
}
