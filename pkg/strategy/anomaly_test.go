package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vignesh-goutham/orion/pkg/market"
)

func TestRegimeWeights(t *testing.T) {
	tests := []struct {
		name         string
		accum        float64
		shock        float64
		wantA, wantB float64
	}{
		{name: "quiet accumulation leans on accumulation", accum: 0.7, shock: 0.05, wantA: 0.6, wantB: 0.1},
		{name: "loud negative shock dominates", accum: 0.7, shock: -0.5, wantA: 0.2, wantB: 0.6},
		{name: "loud positive shock dominates", accum: 0.2, shock: 0.45, wantA: 0.2, wantB: 0.6},
		{name: "everything else blends evenly", accum: 0.4, shock: -0.2, wantA: 1.0 / 3, wantB: 1.0 / 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wA, wB, wC := regimeWeights(tt.accum, tt.shock)

			assert.InDelta(t, tt.wantA, wA, 1e-9)
			assert.InDelta(t, tt.wantB, wB, 1e-9)
			assert.InDelta(t, 1.0, wA+wB+wC, 1e-9, "weights must sum to one")
		})
	}
}

func TestMomentumPillarTrapDetection(t *testing.T) {
	strat := NewAdaptiveAnomaly(DefaultParams())

	bars := flatBars(25, 100)
	bars[10].High = 104 // prior high inside the lookback
	bars[24].High = 105 // fresh high on the last bar

	rsi := make([]float64, len(bars))
	ppo := make([]float64, len(bars))
	for i := range rsi {
		rsi[i] = 55
	}

	// Oscillator confirms the new high: no trap.
	rsi[10], rsi[24] = 60, 65
	_, trap := strat.momentumPillar(bars, rsi, ppo)
	assert.False(t, trap)

	// New high with a weaker oscillator: divergence trap.
	rsi[10], rsi[24] = 65, 60
	_, trap = strat.momentumPillar(bars, rsi, ppo)
	assert.True(t, trap)

	// No fresh high: weak oscillator alone is not a trap.
	bars[24].High = 103
	_, trap = strat.momentumPillar(bars, rsi, ppo)
	assert.False(t, trap)
}

func TestSentimentPillarRewardsResistedShock(t *testing.T) {
	strat := NewAdaptiveAnomaly(DefaultParams())
	bars := flatBars(40, 100)
	asOf := bars[39].Timestamp

	news := []market.NewsEvent{
		{Timestamp: asOf.Add(-2 * time.Hour), Score: -0.5, Headline: "guidance cut"},
		{Timestamp: asOf.AddDate(0, 0, -5), Score: 0.1},
		{Timestamp: asOf.AddDate(0, 0, -10), Score: -0.1},
	}
	h := History{Ticker: "NVDA", Bars: bars, News: news}

	shock, pillar := strat.sentimentPillar(h, 39)

	assert.InDelta(t, -0.5, shock, 1e-9, "latest score against a neutral trailing average")
	assert.InDelta(t, 0.5, pillar, 1e-9, "flat tape into bad news earns the pillar")
}

func TestSentimentPillarNotEarnedWhenPriceFolds(t *testing.T) {
	strat := NewAdaptiveAnomaly(DefaultParams())
	bars := flatBars(40, 100)
	bars[39].Close = 97 // tape followed the news down
	asOf := bars[39].Timestamp

	news := []market.NewsEvent{
		{Timestamp: asOf.Add(-2 * time.Hour), Score: -0.5},
		{Timestamp: asOf.AddDate(0, 0, -5), Score: 0.0},
	}
	h := History{Ticker: "NVDA", Bars: bars, News: news}

	shock, pillar := strat.sentimentPillar(h, 39)

	assert.InDelta(t, -0.5, shock, 1e-9)
	assert.Zero(t, pillar, "a falling tape earns nothing from the shock")
}

func TestSentimentPillarNeutralWithoutNews(t *testing.T) {
	strat := NewAdaptiveAnomaly(DefaultParams())
	h := History{Ticker: "NVDA", Bars: flatBars(40, 100)}

	shock, pillar := strat.sentimentPillar(h, 39)

	assert.Zero(t, shock)
	assert.Zero(t, pillar)
}

func TestEvaluateWarmupAndShape(t *testing.T) {
	strat := NewAdaptiveAnomaly(DefaultParams())
	h := History{Ticker: "NVDA", Bars: flatBars(45, 100), Bias: market.BiasNeutral}

	eval, err := strat.Evaluate(h)

	require.NoError(t, err)
	require.Len(t, eval.Scores, 45)
	require.Len(t, eval.Fires, 45)
	for i := 0; i < anomalyWarmup; i++ {
		assert.Zero(t, eval.Scores[i], "bar %d inside warmup must not score", i)
		assert.False(t, eval.Fires[i])
	}
}

func TestEvaluateEmptyHistory(t *testing.T) {
	strat := NewAdaptiveAnomaly(DefaultParams())

	eval, err := strat.Evaluate(History{Ticker: "NVDA"})

	require.NoError(t, err)
	assert.Empty(t, eval.Scores)
	assert.Empty(t, eval.Fires)
}

func TestNewAdaptiveAnomalyRaisesRewardRiskFloor(t *testing.T) {
	defaulted := NewAdaptiveAnomaly(Params{})
	assert.Equal(t, 2.5, defaulted.params.MinRiskReward)

	tuned := NewAdaptiveAnomaly(Params{MinRiskReward: 2.0})
	assert.Equal(t, 2.0, tuned.params.MinRiskReward)
}
