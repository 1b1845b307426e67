package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vignesh-goutham/orion/pkg/indicators"
	"github.com/vignesh-goutham/orion/pkg/market"
	"github.com/vignesh-goutham/orion/pkg/signals"
	"github.com/vignesh-goutham/orion/pkg/strategy"
)

// TrackedTicker is one active carousel slot with its cached observation.
type TrackedTicker struct {
	Ticker       string    `json:"ticker"`
	FailCount    int       `json:"fail_count"`
	AddedAt      time.Time `json:"added_at"`
	LastPrice    float64   `json:"last_price"`
	LastVelocity float64   `json:"last_velocity"`
	LastScore    float64   `json:"last_score"`
}

// PoolState is the carousel state persisted between cycles. Every cycle is
// treated as potentially the first after a restart: state is loaded at the
// start and saved at the end, never trusted to survive in process memory.
type PoolState struct {
	Active    []TrackedTicker  `json:"active"`
	Reserve   []string         `json:"reserve"`
	Bias      market.MacroBias `json:"macro_bias"`
	UpdatedAt time.Time        `json:"last_updated"`
}

// ControlStore is the slice of the persistence contract the scheduler needs.
type ControlStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CandidateSource enumerates tickers worth scanning when both pools run dry.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]string, error)
}

// Config carries the carousel knobs.
type Config struct {
	ActiveCap       int
	LowScoreFloor   float64
	MaxFails        int
	IdleTimeout     time.Duration
	StaleAfter      time.Duration
	MacroCooldown   time.Duration
	BarWindow       int
	NewsLimit       int
	BenchmarkTicker string
	StateKey        string
}

// DefaultConfig returns the production carousel settings.
func DefaultConfig() Config {
	return Config{
		ActiveCap:       8,
		LowScoreFloor:   30,
		MaxFails:        3,
		IdleTimeout:     30 * time.Minute,
		StaleAfter:      10 * time.Minute,
		MacroCooldown:   5 * time.Minute,
		BarWindow:       90,
		NewsLimit:       25,
		BenchmarkTicker: "SPY",
		StateKey:        "rotation_state",
	}
}

// Scheduler rotates a bounded working set of tickers through the scoring
// pipeline under the provider's rate budget.
type Scheduler struct {
	provider   market.Provider
	store      ControlStore
	candidates CandidateSource
	strat      strategy.Strategy
	cfg        Config

	state          PoolState
	benchmark      []market.Bar
	lastMacroCheck time.Time
}

// NewScheduler wires a carousel for one strategy.
func NewScheduler(provider market.Provider, store ControlStore, candidates CandidateSource, strat strategy.Strategy, cfg Config) *Scheduler {
	if cfg.ActiveCap <= 0 {
		cfg = DefaultConfig()
	}
	return &Scheduler{
		provider:   provider,
		store:      store,
		candidates: candidates,
		strat:      strat,
		cfg:        cfg,
	}
}

// State exposes the current pool state for status reporting.
func (s *Scheduler) State() PoolState {
	return s.state
}

// Cycle runs one carousel pass: rehydrate state, refresh the macro bias,
// evaluate every active ticker, evict and refill, persist state. The
// excluded set holds tickers already carrying an open signal or position.
// Returned signals have fired this cycle and are ready for persistence.
func (s *Scheduler) Cycle(ctx context.Context, excluded map[string]bool, now time.Time) ([]*signals.Signal, error) {
	if err := s.loadState(ctx, now); err != nil {
		return nil, err
	}
	s.refreshMacro(now)

	barred := make(map[string]bool, len(excluded)+1)
	for t := range excluded {
		barred[t] = true
	}

	var fired []*signals.Signal
	var kept []TrackedTicker

	for _, tracked := range s.state.Active {
		sig, keep := s.evaluateSlot(tracked, now)
		if sig != nil {
			fired = append(fired, sig)
			// The fired ticker is about to occupy an open-signal slot; the
			// refill must not hand its carousel slot straight back to it.
			barred[sig.Ticker] = true
		}
		if keep != nil {
			kept = append(kept, *keep)
		}
	}
	s.state.Active = kept

	s.refill(ctx, barred, now)

	s.state.UpdatedAt = now
	if err := s.saveState(ctx); err != nil {
		return fired, err
	}
	return fired, nil
}

// evaluateSlot scores one active ticker. It returns the fired signal, if any,
// and the updated slot, or nil when the ticker leaves the pool.
func (s *Scheduler) evaluateSlot(tracked TrackedTicker, now time.Time) (*signals.Signal, *TrackedTicker) {
	bars, err := s.provider.GetDailyBars(tracked.Ticker, s.cfg.BarWindow)
	if err != nil || len(bars) == 0 {
		tracked.FailCount++
		if tracked.FailCount >= s.cfg.MaxFails {
			log.Warn().Str("ticker", tracked.Ticker).Int("fails", tracked.FailCount).
				Msg("evicting ticker after repeated data failures")
			return nil, nil
		}
		return nil, &tracked
	}
	tracked.FailCount = 0

	h := strategy.History{
		Ticker:    tracked.Ticker,
		Bars:      market.SortBars(bars),
		Benchmark: s.benchmark,
		Bias:      s.state.Bias,
	}
	if news, err := s.provider.GetNewsSentiment(tracked.Ticker, s.cfg.NewsLimit, now.AddDate(0, 0, -60), now); err == nil {
		h.News = news
	}

	eval, err := s.strat.Evaluate(h)
	if err != nil || len(eval.Scores) == 0 {
		tracked.FailCount++
		return nil, &tracked
	}

	last := len(h.Bars) - 1
	price := h.Bars[last].Close
	if tracked.LastPrice > 0 {
		tracked.LastVelocity = price/tracked.LastPrice - 1
	}
	tracked.LastPrice = price
	tracked.LastScore = eval.Scores[last]

	if eval.Fires[last] {
		plan, err := s.strat.DeriveExecution(h, last)
		if err == nil {
			sig := strategy.Signal(s.strat, h, last, plan, eval.Scores[last], now)
			sig.ID = uuid.New()
			log.Info().Str("ticker", tracked.Ticker).Float64("score", tracked.LastScore).
				Str("status", string(sig.Status)).Msg("carousel slot fired")
			return sig, nil // slot freed
		}
		log.Debug().Str("ticker", tracked.Ticker).Err(err).Msg("firing bar produced no acceptable plan")
	}

	if tracked.LastScore < s.cfg.LowScoreFloor {
		return nil, nil
	}
	if now.Sub(tracked.AddedAt) > s.cfg.IdleTimeout {
		log.Debug().Str("ticker", tracked.Ticker).Msg("evicting idle ticker")
		return nil, nil
	}
	return nil, &tracked
}

// refill tops up the active pool from the reserve, reinitializing both pools
// from the candidate source when they run dry.
func (s *Scheduler) refill(ctx context.Context, excluded map[string]bool, now time.Time) {
	for len(s.state.Active) < s.cfg.ActiveCap && len(s.state.Reserve) > 0 {
		next := s.state.Reserve[0]
		s.state.Reserve = s.state.Reserve[1:]
		if excluded[next] || s.isActive(next) {
			continue
		}
		s.state.Active = append(s.state.Active, TrackedTicker{Ticker: next, AddedAt: now})
	}

	if len(s.state.Active) > 0 || len(s.state.Reserve) > 0 {
		return
	}

	all, err := s.candidates.Candidates(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cannot reinitialize rotation pools")
		return
	}
	for _, ticker := range all {
		if excluded[ticker] {
			continue
		}
		if len(s.state.Active) < s.cfg.ActiveCap {
			s.state.Active = append(s.state.Active, TrackedTicker{Ticker: ticker, AddedAt: now})
		} else {
			s.state.Reserve = append(s.state.Reserve, ticker)
		}
	}
	log.Info().Int("active", len(s.state.Active)).Int("reserve", len(s.state.Reserve)).
		Msg("rotation pools reinitialized from candidate lists")
}

func (s *Scheduler) isActive(ticker string) bool {
	for _, t := range s.state.Active {
		if t.Ticker == ticker {
			return true
		}
	}
	return false
}

// refreshMacro updates the shared market bias from the reference instrument,
// at most once per cooldown window.
func (s *Scheduler) refreshMacro(now time.Time) {
	if !s.lastMacroCheck.IsZero() && now.Sub(s.lastMacroCheck) < s.cfg.MacroCooldown {
		return
	}
	s.lastMacroCheck = now

	bars, err := s.provider.GetDailyBars(s.cfg.BenchmarkTicker, 60)
	if err != nil || len(bars) == 0 {
		return // keep the previous bias
	}
	s.benchmark = market.SortBars(bars)
	closes := market.Closes(s.benchmark)
	price := closes[len(closes)-1]
	sma20 := indicators.SMA(closes, 20)
	sma50 := indicators.SMA(closes, 50)

	bias := market.BiasNeutral
	switch {
	case sma50 > 0 && price > sma20 && sma20 > sma50:
		bias = market.BiasRiskOn
	case sma20 > 0 && price < sma20 && (sma50 == 0 || sma20 < sma50):
		bias = market.BiasRiskOff
	}
	if bias != s.state.Bias {
		log.Info().Str("from", string(s.state.Bias)).Str("to", string(bias)).Msg("macro bias changed")
	}
	s.state.Bias = bias
}

// loadState rehydrates the pool state blob, discarding it when stale.
func (s *Scheduler) loadState(ctx context.Context, now time.Time) error {
	state, err := LoadState(ctx, s.store, s.cfg.StateKey)
	if err != nil {
		log.Warn().Err(err).Msg("discarding unreadable rotation state")
		return nil
	}
	if state == nil {
		return nil
	}
	if now.Sub(state.UpdatedAt) > s.cfg.StaleAfter {
		log.Info().Time("state_age", state.UpdatedAt).Msg("discarding stale rotation state")
		return nil
	}
	s.state = *state
	return nil
}

func (s *Scheduler) saveState(ctx context.Context) error {
	return SaveState(ctx, s.store, s.cfg.StateKey, &s.state)
}

// LoadState reads the persisted pool state. A missing blob returns (nil, nil).
func LoadState(ctx context.Context, store ControlStore, key string) (*PoolState, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load rotation state: %w", err)
	}
	if !found {
		return nil, nil
	}
	var state PoolState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode rotation state: %w", err)
	}
	return &state, nil
}

// SaveState writes the pool state blob.
func SaveState(ctx context.Context, store ControlStore, key string, state *PoolState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal rotation state: %w", err)
	}
	if err := store.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("failed to save rotation state: %w", err)
	}
	return nil
}
