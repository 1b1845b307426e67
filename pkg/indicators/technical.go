package indicators

import (
	"math"

	"github.com/vignesh-goutham/orion/pkg/market"
)

// Pure indicator math shared by strategies. Every function degrades to a
// neutral value when the series is too short, so callers never have to
// special-case thin histories.

// SMA calculates the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA calculates the exponential moving average over the full series.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	ema := SMA(values[:period], period)
	alpha := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = v*alpha + ema*(1-alpha)
	}
	return ema
}

// StdDev calculates the population standard deviation of the last period values.
func StdDev(values []float64, period int) float64 {
	if period <= 1 || len(values) < period {
		return 0
	}
	window := values[len(values)-period:]
	mean := SMA(window, period)
	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(period))
}

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Returns the neutral 50 when there is not enough data.
func RSI(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period+1 {
		return 50.0
	}
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain*(1-alpha) + gain*alpha
		avgLoss = avgLoss*(1-alpha) + loss*alpha
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries calculates the RSI at every bar, neutral-padded at the front.
func RSISeries(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		out[i] = RSI(prices[:i+1], period)
	}
	return out
}

// PPOSeries calculates the percentage price oscillator (fast EMA vs slow EMA,
// as a percent of the slow EMA) at every bar, zero-padded at the front.
func PPOSeries(prices []float64, fast, slow int) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		window := prices[:i+1]
		slowEMA := EMA(window, slow)
		if slowEMA == 0 {
			continue
		}
		out[i] = (EMA(window, fast) - slowEMA) / slowEMA * 100.0
	}
	return out
}

// ATR calculates the Average True Range over the last period bars using
// Wilder's smoothing. Returns 0 when there is not enough data.
func ATR(bars []market.Bar, period int) float64 {
	if period <= 0 || len(bars) < period+1 {
		return 0
	}
	trueRanges := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hl := bars[i].High - bars[i].Low
		hc := math.Abs(bars[i].High - bars[i-1].Close)
		lc := math.Abs(bars[i].Low - bars[i-1].Close)
		trueRanges = append(trueRanges, math.Max(hl, math.Max(hc, lc)))
	}
	atr := 0.0
	for _, tr := range trueRanges[:period] {
		atr += tr
	}
	atr /= float64(period)
	alpha := 1.0 / float64(period)
	for _, tr := range trueRanges[period:] {
		atr = atr*(1-alpha) + tr*alpha
	}
	return atr
}

// OBVSlope calculates the slope of on-balance volume over the last period
// bars, normalized by the average volume so tickers of different liquidity
// are comparable. Positive values indicate accumulation.
func OBVSlope(bars []market.Bar, period int) float64 {
	if period <= 1 || len(bars) < period+1 {
		return 0
	}
	window := bars[len(bars)-period-1:]
	obv := make([]float64, len(window))
	avgVol := 0.0
	for i := 1; i < len(window); i++ {
		obv[i] = obv[i-1]
		if window[i].Close > window[i-1].Close {
			obv[i] += window[i].Volume
		} else if window[i].Close < window[i-1].Close {
			obv[i] -= window[i].Volume
		}
		avgVol += window[i].Volume
	}
	avgVol /= float64(len(window) - 1)
	if avgVol == 0 {
		return 0
	}
	return (obv[len(obv)-1] - obv[0]) / (avgVol * float64(period))
}

// BandWidth calculates the Bollinger band width (2 sigma band over mid) for
// the last period values, a volatility-compression measure.
func BandWidth(prices []float64, period int) float64 {
	mid := SMA(prices, period)
	if mid == 0 {
		return 0
	}
	return 4 * StdDev(prices, period) / mid
}
