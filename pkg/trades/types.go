package trades

import (
	"time"

	"github.com/shopspring/decimal"
)

// CloseStatus describes how a position was resolved.
type CloseStatus string

const (
	ClosedTakeProfit CloseStatus = "CLOSED_TP"
	ClosedStopLoss   CloseStatus = "CLOSED_SL"
	ClosedExpired    CloseStatus = "CLOSED_EXPIRED"
)

// Trade is a virtual or backtested position with a recorded outcome. Close
// price and close status are always set together by the resolver; a Trade is
// never persisted half-open.
type Trade struct {
	Ticker     string          `json:"ticker"`
	Setup      string          `json:"setup"` // originating strategy id
	SignalID   string          `json:"signal_id,omitempty"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	OpenedAt   time.Time       `json:"opened_at"`
	ClosedAt   time.Time       `json:"closed_at"`
	ClosePrice decimal.Decimal `json:"close_price"`
	Status     CloseStatus     `json:"status"`
	ProfitPct  decimal.Decimal `json:"profit_pct"`
	HoldDays   int             `json:"hold_days"`

	// Metrics is a bag of named numeric values captured at entry time,
	// keyed metric_<name>, for later attribution analysis.
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ProfitPercent computes (close - entry) / entry * 100 for a long position.
func ProfitPercent(entry, close decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	return close.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100))
}

// IsWin reports whether the trade closed profitably.
func (t *Trade) IsWin() bool {
	return t.ClosePrice.GreaterThan(t.EntryPrice)
}
