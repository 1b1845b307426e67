package signals

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingSignal() *Signal {
	return &Signal{
		Ticker:     "NVDA",
		Status:     StatusPending,
		Entry:      decimal.NewFromFloat(5.00),
		StopLoss:   decimal.NewFromFloat(4.50),
		TakeProfit: decimal.NewFromFloat(6.00),
	}
}

func TestObservePendingActivatesAtEntry(t *testing.T) {
	sig := newPendingSignal()
	now := time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

	transition := Observe(sig, decimal.NewFromFloat(5.01), now)

	require.NotNil(t, transition)
	assert.Equal(t, StatusPending, transition.From)
	assert.Equal(t, StatusActive, transition.To)
	assert.Equal(t, StatusActive, sig.Status)
	assert.Equal(t, now, sig.UpdatedAt)

	require.Len(t, sig.Notes, 1, "exactly one note per transition")
	assert.True(t, strings.HasPrefix(sig.Notes[0], "2024-06-03 14:30:00"),
		"note must carry the observation timestamp, got %q", sig.Notes[0])
	assert.Contains(t, sig.Notes[0], "PENDING -> ACTIVE at $5.01")
}

func TestObservePendingBelowEntryIsNoop(t *testing.T) {
	sig := newPendingSignal()

	transition := Observe(sig, decimal.NewFromFloat(4.99), time.Now().UTC())

	assert.Nil(t, transition)
	assert.Equal(t, StatusPending, sig.Status)
	assert.Empty(t, sig.Notes)
}

func TestObservePendingStopBeatsEntry(t *testing.T) {
	// A print at or below the stop invalidates even before activation.
	sig := newPendingSignal()

	transition := Observe(sig, decimal.NewFromFloat(4.50), time.Now().UTC())

	require.NotNil(t, transition)
	assert.Equal(t, StatusInvalid, transition.To)
	assert.Equal(t, StatusInvalid, sig.Status)
}

func TestObserveZoneSignalActivatesOnPullback(t *testing.T) {
	zoneBottom := decimal.NewFromFloat(4.90)
	zoneTop := decimal.NewFromFloat(5.10)
	sig := newPendingSignal()
	sig.EntryZoneBottom = &zoneBottom
	sig.EntryZoneTop = &zoneTop

	// Above the zone: still waiting for the pullback.
	assert.Nil(t, Observe(sig, decimal.NewFromFloat(5.20), time.Now().UTC()))
	assert.Equal(t, StatusPending, sig.Status)

	transition := Observe(sig, decimal.NewFromFloat(5.05), time.Now().UTC())
	require.NotNil(t, transition)
	assert.Equal(t, StatusActive, transition.To)
}

func TestObserveActiveTransitions(t *testing.T) {
	tests := []struct {
		name       string
		price      decimal.Decimal
		wantStatus Status
		wantChange bool
	}{
		{name: "target reached", price: decimal.NewFromFloat(6.00), wantStatus: StatusCompleted, wantChange: true},
		{name: "stop reached", price: decimal.NewFromFloat(4.40), wantStatus: StatusInvalid, wantChange: true},
		{name: "exact stop touch", price: decimal.NewFromFloat(4.50), wantStatus: StatusInvalid, wantChange: true},
		{name: "between levels", price: decimal.NewFromFloat(5.40), wantStatus: StatusActive, wantChange: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := newPendingSignal()
			sig.Status = StatusActive

			transition := Observe(sig, tt.price, time.Now().UTC())

			assert.Equal(t, tt.wantStatus, sig.Status)
			if tt.wantChange {
				require.NotNil(t, transition)
				assert.Equal(t, tt.wantStatus, transition.To)
			} else {
				assert.Nil(t, transition)
			}
		})
	}
}

func TestObserveTriggeredBehavesLikeActive(t *testing.T) {
	sig := newPendingSignal()
	sig.Status = StatusTriggered

	transition := Observe(sig, decimal.NewFromFloat(6.10), time.Now().UTC())

	require.NotNil(t, transition)
	assert.Equal(t, StatusCompleted, sig.Status)
}

func TestObserveExpiry(t *testing.T) {
	now := time.Now().UTC()
	expired := now.Add(-time.Hour)

	sig := newPendingSignal()
	sig.Status = StatusActive
	sig.ExpiresAt = &expired

	transition := Observe(sig, decimal.NewFromFloat(5.40), now)

	require.NotNil(t, transition)
	assert.Equal(t, StatusExpired, transition.To)
	assert.Equal(t, StatusExpired, sig.Status)
}

func TestExpireIfDue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	t.Run("overdue signal expires", func(t *testing.T) {
		sig := newPendingSignal()
		sig.Status = StatusActive
		sig.ExpiresAt = &past

		transition := ExpireIfDue(sig, now)

		require.NotNil(t, transition)
		assert.Equal(t, StatusActive, transition.From)
		assert.Equal(t, StatusExpired, transition.To)
		assert.Equal(t, StatusExpired, sig.Status)
		require.Len(t, sig.Notes, 1)
		assert.Contains(t, sig.Notes[0], "without a quote")
	})

	t.Run("not yet due", func(t *testing.T) {
		sig := newPendingSignal()
		sig.ExpiresAt = &future

		assert.Nil(t, ExpireIfDue(sig, now))
		assert.Equal(t, StatusPending, sig.Status)
	})

	t.Run("no deadline never expires", func(t *testing.T) {
		sig := newPendingSignal()

		assert.Nil(t, ExpireIfDue(sig, now))
	})

	t.Run("terminal is a no-op", func(t *testing.T) {
		sig := newPendingSignal()
		sig.Status = StatusCompleted
		sig.ExpiresAt = &past

		assert.Nil(t, ExpireIfDue(sig, now))
		assert.Equal(t, StatusCompleted, sig.Status)
	})
}

func TestObserveTerminalIsNoop(t *testing.T) {
	for _, status := range []Status{StatusCompleted, StatusInvalid, StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			sig := newPendingSignal()
			sig.Status = status

			// Even a price through both levels must not move a closed signal.
			transition := Observe(sig, decimal.NewFromFloat(0.01), time.Now().UTC())

			assert.Nil(t, transition)
			assert.Equal(t, status, sig.Status)
			assert.Empty(t, sig.Notes)
		})
	}
}

func TestIsOpenAndIsTerminal(t *testing.T) {
	open := []Status{StatusPending, StatusActive, StatusTriggered}
	terminal := []Status{StatusCompleted, StatusInvalid, StatusExpired}

	for _, status := range open {
		sig := &Signal{Status: status}
		assert.True(t, sig.IsOpen(), "%s should be open", status)
		assert.False(t, sig.IsTerminal())
	}
	for _, status := range terminal {
		sig := &Signal{Status: status}
		assert.False(t, sig.IsOpen(), "%s should not be open", status)
		assert.True(t, sig.IsTerminal())
	}
}
