package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func barAt(ts time.Time, close float64) Bar {
	return Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestSortBarsOrdersAndDeduplicates(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	bars := []Bar{
		barAt(base.AddDate(0, 0, 2), 102),
		barAt(base, 100),
		barAt(base.AddDate(0, 0, 1), 101),
		barAt(base.AddDate(0, 0, 1), 101.5),
	}

	sorted := SortBars(bars)

	assert.Len(t, sorted, 3)
	for i := 1; i < len(sorted); i++ {
		assert.True(t, sorted[i].Timestamp.After(sorted[i-1].Timestamp))
	}
	assert.Equal(t, base, sorted[0].Timestamp)
	assert.Equal(t, base.AddDate(0, 0, 2), sorted[2].Timestamp)

	// Input order is preserved in the caller's slice.
	assert.Equal(t, base.AddDate(0, 0, 2), bars[0].Timestamp)
}

func TestSortBarsShortSeries(t *testing.T) {
	assert.Empty(t, SortBars(nil))
	one := []Bar{barAt(time.Now(), 10)}
	assert.Len(t, SortBars(one), 1)
}

func TestClosesAndVolumes(t *testing.T) {
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	bars := []Bar{barAt(base, 10), barAt(base.AddDate(0, 0, 1), 11)}
	bars[0].Volume = 500
	bars[1].Volume = 600

	assert.Equal(t, []float64{10, 11}, Closes(bars))
	assert.Equal(t, []float64{500, 600}, Volumes(bars))
}

func TestBarsInYear(t *testing.T) {
	var bars []Bar
	start := time.Date(2023, 12, 28, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		bars = append(bars, barAt(start.AddDate(0, 0, i), 100))
	}

	from, to := BarsInYear(bars, 2024)
	assert.Equal(t, 4, from)
	assert.Equal(t, 10, to)
	for _, b := range bars[from:to] {
		assert.Equal(t, 2024, b.Timestamp.Year())
	}

	from, to = BarsInYear(bars, 2023)
	assert.Equal(t, 0, from)
	assert.Equal(t, 4, to)

	from, to = BarsInYear(bars, 2025)
	assert.Equal(t, len(bars), from)
	assert.Equal(t, len(bars), to)
}

func TestRegimeMultiplier(t *testing.T) {
	tests := []struct {
		bias     MacroBias
		expected float64
	}{
		{bias: BiasRiskOn, expected: 1.25},
		{bias: BiasNeutral, expected: 1.0},
		{bias: BiasRiskOff, expected: 0.75},
		{bias: MacroBias(""), expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.bias), func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.bias.RegimeMultiplier(), 1e-9)
		})
	}
}
