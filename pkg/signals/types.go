package signals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current lifecycle state of a trading signal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusTriggered Status = "TRIGGERED" // reserved; ACTIVE-equivalent
	StatusCompleted Status = "COMPLETED"
	StatusInvalid   Status = "INVALIDATED"
	StatusExpired   Status = "EXPIRED"

	DateLayout = "2006-01-02"
	NoteLayout = "2006-01-02 15:04:05"
)

// OpenStatuses are the statuses covered by the one-open-signal-per-ticker
// uniqueness constraint. Closed statuses may accumulate unlimited history.
var OpenStatuses = []Status{StatusPending, StatusActive, StatusTriggered}

// Signal is a proposed trade for a ticker with entry, stop, target and a
// lifecycle status. Signals are never deleted, only transitioned to a
// terminal status.
type Signal struct {
	ID     uuid.UUID `json:"id"`
	Ticker string    `json:"ticker"`
	Status Status    `json:"status"`

	Entry           decimal.Decimal  `json:"entry"`
	EntryZoneBottom *decimal.Decimal `json:"entry_zone_bottom,omitempty"`
	EntryZoneTop    *decimal.Decimal `json:"entry_zone_top,omitempty"`
	StopLoss        decimal.Decimal  `json:"stop_loss"`
	TakeProfit      decimal.Decimal  `json:"take_profit"`
	RiskReward      decimal.Decimal  `json:"risk_reward"`

	// Structured attribution captured at creation time. Notes carry the same
	// information as prose for audit, but these fields are authoritative.
	Strategy string             `json:"strategy"`
	Score    float64            `json:"score"`
	Params   map[string]float64 `json:"params,omitempty"`

	GeneratedAt time.Time  `json:"generated_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	Notes []string `json:"notes,omitempty"`
}

// IsOpen reports whether the signal occupies the per-ticker uniqueness slot.
func (s *Signal) IsOpen() bool {
	switch s.Status {
	case StatusPending, StatusActive, StatusTriggered:
		return true
	}
	return false
}

// IsTerminal reports whether the signal has reached a final status.
func (s *Signal) IsTerminal() bool {
	switch s.Status {
	case StatusCompleted, StatusInvalid, StatusExpired:
		return true
	}
	return false
}

// AppendNote adds a timestamped free-text note to the signal's audit trail.
func (s *Signal) AppendNote(now time.Time, format string, args ...interface{}) {
	note := fmt.Sprintf("%s %s", now.UTC().Format(NoteLayout), fmt.Sprintf(format, args...))
	s.Notes = append(s.Notes, note)
}
