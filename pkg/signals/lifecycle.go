package signals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transition records one lifecycle change, to be fanned out by the caller as
// an alert and a counter update.
type Transition struct {
	From   Status
	To     Status
	Ticker string
	Price  decimal.Decimal
	Reason string
}

// Observe applies one live price sample to a signal and mutates its status
// according to the lifecycle rules. It returns the transition that occurred,
// or nil when nothing changed. Observing a terminal signal is a no-op, never
// an error, so a stale monitor cycle cannot corrupt history.
//
// The stop check always runs before the entry/target check, matching the
// pessimistic tie-break used by the trade resolver.
func Observe(s *Signal, price decimal.Decimal, now time.Time) *Transition {
	if s.IsTerminal() {
		return nil
	}

	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return apply(s, price, now, StatusExpired, "time budget elapsed without resolution")
	}

	switch s.Status {
	case StatusPending:
		if price.LessThanOrEqual(s.StopLoss) {
			return apply(s, price, now, StatusInvalid, "stop reached before entry confirmed")
		}
		if entryReached(s, price) {
			return apply(s, price, now, StatusActive, "entry confirmed")
		}
	case StatusActive, StatusTriggered:
		if price.LessThanOrEqual(s.StopLoss) {
			return apply(s, price, now, StatusInvalid, "stop reached")
		}
		if price.GreaterThanOrEqual(s.TakeProfit) {
			return apply(s, price, now, StatusCompleted, "target reached")
		}
	}

	return nil
}

// ExpireIfDue transitions an open signal to EXPIRED once its time budget has
// elapsed, without a price observation. A delisted or halted ticker stops
// producing quotes but must still release its uniqueness slot eventually.
func ExpireIfDue(s *Signal, now time.Time) *Transition {
	if s.IsTerminal() || s.ExpiresAt == nil || !now.After(*s.ExpiresAt) {
		return nil
	}
	from := s.Status
	s.Status = StatusExpired
	s.UpdatedAt = now
	s.AppendNote(now, "%s -> %s: time budget elapsed without a quote", from, StatusExpired)
	return &Transition{
		From:   from,
		To:     StatusExpired,
		Ticker: s.Ticker,
		Reason: "time budget elapsed without a quote",
	}
}

// entryReached decides activation. Zone signals wait for price to pull back
// into the zone; plain signals confirm once price reaches the entry threshold.
func entryReached(s *Signal, price decimal.Decimal) bool {
	if s.EntryZoneTop != nil {
		return price.LessThanOrEqual(*s.EntryZoneTop)
	}
	return price.GreaterThanOrEqual(s.Entry)
}

func apply(s *Signal, price decimal.Decimal, now time.Time, to Status, reason string) *Transition {
	from := s.Status
	s.Status = to
	s.UpdatedAt = now
	s.AppendNote(now, "%s -> %s at $%s: %s", from, to, price.StringFixed(2), reason)
	return &Transition{
		From:   from,
		To:     to,
		Ticker: s.Ticker,
		Price:  price,
		Reason: reason,
	}
}
