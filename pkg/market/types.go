package market

import (
	"sort"
	"time"
)

// Bar is a single OHLCV sample for a ticker at a timestamp.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// NewsEvent is one scored news item for a ticker.
type NewsEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"` // sentiment in [-1, 1]
	Topics    []string  `json:"topics"`
	Headline  string    `json:"headline"`
	URL       string    `json:"url"`
}

// MacroBias is the broad market posture derived from a reference instrument.
type MacroBias string

const (
	BiasRiskOn  MacroBias = "RISK_ON"
	BiasNeutral MacroBias = "NEUTRAL"
	BiasRiskOff MacroBias = "RISK_OFF"
)

// RegimeMultiplier scales strategy time budgets by market posture.
func (b MacroBias) RegimeMultiplier() float64 {
	switch b {
	case BiasRiskOn:
		return 1.25
	case BiasRiskOff:
		return 0.75
	default:
		return 1.0
	}
}

// SortBars orders bars by timestamp ascending, dropping duplicate timestamps.
// Series handed to strategies and the simulator must be strictly ordered.
func SortBars(bars []Bar) []Bar {
	if len(bars) < 2 {
		return bars
	}
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	out := sorted[:1]
	for _, b := range sorted[1:] {
		if b.Timestamp.After(out[len(out)-1].Timestamp) {
			out = append(out, b)
		}
	}
	return out
}

// Closes extracts the close series from bars.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes extracts the volume series from bars.
func Volumes(bars []Bar) []float64 {
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	return vols
}

// BarsInYear returns the index range [from, to) of bars whose timestamps fall
// inside the given calendar year.
func BarsInYear(bars []Bar, year int) (int, int) {
	from, to := len(bars), len(bars)
	for i, b := range bars {
		if b.Timestamp.Year() == year {
			from = i
			break
		}
	}
	for i := from; i < len(bars); i++ {
		if bars[i].Timestamp.Year() > year {
			to = i
			return from, to
		}
	}
	return from, to
}
