package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/orion/pkg/market"
	"github.com/vignesh-goutham/orion/pkg/simulator"
	"github.com/vignesh-goutham/orion/pkg/strategy"
	"github.com/vignesh-goutham/orion/pkg/trades"
)

// Store is the slice of persistence the orchestrator needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SaveTrades(ctx context.Context, batch []*trades.Trade) error
	AppendLog(ctx context.Context, message string) error
	SetProgress(ctx context.Context, processed, total int) error
}

// CandidateSource enumerates the ticker universe.
type CandidateSource interface {
	Candidates(ctx context.Context) ([]string, error)
}

// Config carries one backtest request.
type Config struct {
	Year        int
	CommitEvery int // flush trades/progress every N tickers
	HistoryBars int // daily bars fetched per ticker
	// FallbackUniverse is used when the candidate source cannot enumerate.
	FallbackUniverse []string
}

// excludedSymbols are benchmark and leveraged instruments that must never be
// traded by a backtest even when candidate tables contain them.
var excludedSymbols = map[string]bool{
	"SPY": true, "QQQ": true, "DIA": true, "IWM": true,
	"TQQQ": true, "SQQQ": true, "UPRO": true, "SPXU": true, "SOXL": true, "SOXS": true,
}

// Backtester drives the scoring pipeline and the trade resolver over
// historical data for a whole ticker universe and a target year.
type Backtester struct {
	provider market.Provider
	store    Store
	universe CandidateSource
	strat    strategy.Strategy
	cfg      Config

	pending []*trades.Trade
	results []*trades.Trade
}

// NewBacktester wires an orchestrator run.
func NewBacktester(provider market.Provider, store Store, universe CandidateSource, strat strategy.Strategy, cfg Config) *Backtester {
	if cfg.CommitEvery <= 0 {
		cfg.CommitEvery = 10
	}
	if cfg.HistoryBars <= 0 {
		cfg.HistoryBars = 600
	}
	return &Backtester{
		provider: provider,
		store:    store,
		universe: universe,
		strat:    strat,
		cfg:      cfg,
	}
}

// Run executes the whole backtest. Failing to enumerate the universe aborts
// the run; any single ticker's failure is logged and skipped. The run is not
// checkpointed: a restart re-runs from ticker zero.
func (b *Backtester) Run(ctx context.Context) ([]*trades.Trade, error) {
	tickers, err := b.buildUniverse(ctx)
	if err != nil {
		return nil, err
	}

	b.logf(ctx, "backtest started: strategy=%s year=%d universe=%d", b.strat.Name(), b.cfg.Year, len(tickers))
	_ = b.store.SetProgress(ctx, 0, len(tickers))

	for i, ticker := range tickers {
		if err := b.waitWhilePaused(ctx); err != nil {
			return b.results, err
		}
		if err := b.runTicker(ctx, ticker); err != nil {
			log.Warn().Str("ticker", ticker).Err(err).Msg("skipping ticker")
		}
		if (i+1)%b.cfg.CommitEvery == 0 || i == len(tickers)-1 {
			b.commit(ctx, i+1, len(tickers))
		}
	}

	b.logf(ctx, "backtest finished: strategy=%s year=%d trades=%d", b.strat.Name(), b.cfg.Year, len(b.results))
	return b.results, nil
}

// buildUniverse enumerates candidates, falls back to the configured sample,
// and drops benchmark/leveraged symbols. An empty result is the one error
// class that aborts the whole run.
func (b *Backtester) buildUniverse(ctx context.Context) ([]string, error) {
	tickers, err := b.universe.Candidates(ctx)
	if err != nil || len(tickers) == 0 {
		log.Warn().Err(err).Msg("candidate tables unavailable, using fallback universe")
		tickers = b.cfg.FallbackUniverse
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if !excludedSymbols[t] {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("cannot enumerate ticker universe for %d", b.cfg.Year)
	}
	return out, nil
}

// runTicker scores one ticker's full history and simulates every firing bar
// inside the requested year, skipping bars covered by an open simulated
// position.
func (b *Backtester) runTicker(ctx context.Context, ticker string) error {
	bars, err := b.provider.GetDailyBars(ticker, b.cfg.HistoryBars)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return fmt.Errorf("no daily history")
	}

	h := strategy.History{
		Ticker: ticker,
		Bars:   market.SortBars(bars),
		Bias:   market.BiasNeutral,
	}
	yearStart := time.Date(b.cfg.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)
	if news, err := b.provider.GetNewsSentiment(ticker, 100, yearStart.AddDate(0, -2, 0), yearEnd); err == nil {
		h.News = news
	}

	eval, err := b.strat.Evaluate(h)
	if err != nil {
		return err
	}

	from, to := market.BarsInYear(h.Bars, b.cfg.Year)
	for i := from; i < to; i++ {
		if !eval.Fires[i] || i+1 >= len(h.Bars) {
			continue
		}
		trade, held := b.simulateEntry(h, eval, i)
		if trade == nil {
			continue
		}
		b.pending = append(b.pending, trade)
		b.results = append(b.results, trade)
		// Advance past the holding period instead of rescanning bars the
		// position already covered.
		i += held
	}
	return nil
}

// simulateEntry derives the firing bar's plan, re-anchors it to the next
// bar's open, and resolves the position. Returns the closed trade and the
// number of bars consumed, or nil when the candidate is rejected.
func (b *Backtester) simulateEntry(h strategy.History, eval strategy.Evaluation, i int) (*trades.Trade, int) {
	plan, err := b.strat.DeriveExecution(h, i)
	if err != nil {
		return nil, 0
	}

	entry := decimal.NewFromFloat(h.Bars[i+1].Open).Round(4)
	if !entry.IsPositive() {
		return nil, 0
	}
	stop := entry.Sub(plan.Entry.Sub(plan.StopLoss))
	target := entry.Add(plan.TakeProfit.Sub(plan.Entry))

	trade, err := simulator.Resolve(h.Bars, i+1, entry, stop, target, plan.TTLDays, simulator.Long)
	if err != nil {
		return nil, 0
	}
	trade.Ticker = h.Ticker
	trade.Setup = b.strat.Name()
	trade.Metrics = plan.Metrics
	if trade.Metrics == nil {
		trade.Metrics = map[string]float64{}
	}
	trade.Metrics["metric_score"] = eval.Scores[i]
	return trade, trade.HoldDays
}

// commit flushes pending trades and publishes progress. A failed batch rolls
// back only that unit of work; the run continues.
func (b *Backtester) commit(ctx context.Context, processed, total int) {
	if len(b.pending) > 0 {
		if err := b.store.SaveTrades(ctx, b.pending); err != nil {
			log.Error().Err(err).Int("dropped", len(b.pending)).Msg("failed to persist trade batch")
		}
		b.pending = nil
	}
	if err := b.store.SetProgress(ctx, processed, total); err != nil {
		log.Error().Err(err).Msg("failed to publish progress")
	}
}

// waitWhilePaused blocks between tickers while the cooperative pause flag is
// set. This is the coarsest cancellation granularity the run supports.
func (b *Backtester) waitWhilePaused(ctx context.Context) error {
	for {
		cmd, found, err := b.store.Get(ctx, "worker_command")
		if err != nil || !found || cmd != "pause" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (b *Backtester) logf(ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Info().Msg(msg)
	if err := b.store.AppendLog(ctx, msg); err != nil {
		log.Debug().Err(err).Msg("failed to append scan log")
	}
}
