package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/orion/pkg/market"
	"github.com/vignesh-goutham/orion/pkg/signals"
)

// History bundles everything a strategy may look at for one ticker: the daily
// bar series plus whatever auxiliary series the strategy needs. Auxiliary
// slices may be nil; strategies degrade to neutral scoring rather than fail.
type History struct {
	Ticker    string
	Bars      []market.Bar
	News      []market.NewsEvent
	Benchmark []market.Bar
	Bias      market.MacroBias
}

// Evaluation is the per-bar output of a strategy over a full history.
// Scores[i] and Fires[i] correspond to Bars[i].
type Evaluation struct {
	Scores []float64
	Fires  []bool
}

// ExecutionPlan carries the individualized risk parameters for a firing bar.
type ExecutionPlan struct {
	Entry           decimal.Decimal
	EntryZoneBottom *decimal.Decimal
	EntryZoneTop    *decimal.Decimal
	StopLoss        decimal.Decimal
	TakeProfit      decimal.Decimal
	RiskReward      decimal.Decimal
	TTLDays         int
	Immediate       bool // enter now vs wait for a pullback into the zone

	// Metrics captured at entry time for attribution, keyed metric_<name>.
	Metrics map[string]float64
}

// InitialStatus maps the plan's confidence classification to the signal's
// starting lifecycle state.
func (p *ExecutionPlan) InitialStatus() signals.Status {
	if p.Immediate {
		return signals.StatusActive
	}
	return signals.StatusPending
}

// Strategy turns a bar/news history into a per-bar score and fire decision,
// and derives per-bar execution parameters for bars that fire.
type Strategy interface {
	Name() string
	Evaluate(h History) (Evaluation, error)
	DeriveExecution(h History, idx int) (*ExecutionPlan, error)
}

// Signal materializes a plan into a signal record with structured strategy
// attribution, entered at the given generation time.
func Signal(s Strategy, h History, idx int, plan *ExecutionPlan, score float64, now time.Time) *signals.Signal {
	expires := now.AddDate(0, 0, plan.TTLDays)
	sig := &signals.Signal{
		Ticker:          h.Ticker,
		Status:          plan.InitialStatus(),
		Entry:           plan.Entry,
		EntryZoneBottom: plan.EntryZoneBottom,
		EntryZoneTop:    plan.EntryZoneTop,
		StopLoss:        plan.StopLoss,
		TakeProfit:      plan.TakeProfit,
		RiskReward:      plan.RiskReward,
		Strategy:        s.Name(),
		Score:           score,
		Params:          plan.Metrics,
		GeneratedAt:     now,
		UpdatedAt:       now,
		ExpiresAt:       &expires,
	}
	sig.AppendNote(now, "generated by %s with score %.1f (rr %s, ttl %dd)",
		s.Name(), score, plan.RiskReward.StringFixed(2), plan.TTLDays)
	return sig
}

// Constructor builds a strategy from its tunable parameters.
type Constructor func(Params) Strategy

// registry is the lookup table of available strategies, keyed by mode name.
var registry = map[string]Constructor{}

// Register adds a strategy constructor to the lookup table.
func Register(name string, c Constructor) {
	registry[name] = c
}

// New builds the strategy registered under name.
func New(name string, params Params) (Strategy, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Names())
	}
	return c(params), nil
}

// Names lists the registered strategy modes.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
