package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vignesh-goutham/orion/pkg/alpaca"
	"github.com/vignesh-goutham/orion/pkg/backtest"
	"github.com/vignesh-goutham/orion/pkg/dynamodb"
	"github.com/vignesh-goutham/orion/pkg/judge"
	"github.com/vignesh-goutham/orion/pkg/market"
	"github.com/vignesh-goutham/orion/pkg/notification"
	"github.com/vignesh-goutham/orion/pkg/rotation"
	"github.com/vignesh-goutham/orion/pkg/signals"
	"github.com/vignesh-goutham/orion/pkg/strategy"
)

// Worker statuses surfaced through the control store.
const (
	StatusIdle    = "idle"
	StatusRunning = "running"
	StatusPaused  = "paused"
)

// Commands accepted from the control store. Unknown commands are treated as
// CommandStart so a garbled write never wedges the worker.
const (
	CommandStart  = "start"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandScreen = "start_phase1"
	CommandDeep   = "start_phase3"
)

// quoteChunkSize bounds one snapshot request during screening.
const quoteChunkSize = 500

// MarketService is the slice of the Alpaca client the worker needs.
type MarketService interface {
	market.Provider
	market.CalendarProvider
	ListActiveTickers() ([]string, error)
}

// ScanWorker runs one worker invocation: it reads the pending command from
// the control store, executes the matching cycle, and writes status back.
type ScanWorker struct {
	config              *Config
	dbService           *dynamodb.Service
	marketService       MarketService
	notificationService *notification.DiscordNotificationService
	judgeClient         *judge.Client
	strat               strategy.Strategy

	newSignals  int
	transitions int
	errorCount  int
}

// NewScanWorker creates a new scan worker instance
func NewScanWorker(config *Config) (*ScanWorker, error) {
	dbService, err := dynamodb.NewService(config.DynamoDBRegion, config.TableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB service: %w", err)
	}

	marketService, err := alpaca.NewMarketData()
	if err != nil {
		return nil, fmt.Errorf("failed to create Alpaca service: %w", err)
	}

	strat, err := strategy.New(config.StrategyName, strategy.DefaultParams())
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	return &ScanWorker{
		config:              config,
		dbService:           dbService,
		marketService:       marketService,
		notificationService: notification.NewDiscordNotificationService(config.DiscordWebhookURL),
		judgeClient:         judge.NewClient(config.JudgeEndpoint, config.JudgeAPIKey),
		strat:               strat,
	}, nil
}

// Run executes one invocation of the worker.
func (w *ScanWorker) Run(ctx context.Context) error {
	command, _, err := w.dbService.Get(ctx, dynamodb.KeyWorkerCommand)
	if err != nil {
		return fmt.Errorf("failed to read worker command: %w", err)
	}

	switch command {
	case CommandPause:
		log.Info().Msg("worker paused, skipping cycle")
		return w.dbService.Set(ctx, dynamodb.KeyWorkerStatus, StatusPaused)
	case CommandResume:
		if err := w.dbService.Set(ctx, dynamodb.KeyWorkerCommand, CommandStart); err != nil {
			return fmt.Errorf("failed to clear resume command: %w", err)
		}
	case CommandScreen:
		return w.withStatus(ctx, func() error { return w.runScreen(ctx) })
	case CommandDeep:
		return w.withStatus(ctx, func() error { return w.runDeepScan(ctx) })
	}

	if req, ok := w.pendingBacktest(ctx); ok {
		return w.withStatus(ctx, func() error { return w.runBacktest(ctx, req) })
	}

	return w.withStatus(ctx, func() error { return w.runScanCycle(ctx) })
}

// withStatus brackets a cycle with running/idle status writes. The idle write
// happens even on failure so a crashed cycle does not leave the worker
// reported as running forever.
func (w *ScanWorker) withStatus(ctx context.Context, cycle func() error) error {
	if err := w.dbService.Set(ctx, dynamodb.KeyWorkerStatus, StatusRunning); err != nil {
		return fmt.Errorf("failed to set worker status: %w", err)
	}

	cycleErr := cycle()

	if err := w.dbService.Set(ctx, dynamodb.KeyWorkerStatus, StatusIdle); err != nil {
		log.Warn().Err(err).Msg("failed to reset worker status")
	}
	return cycleErr
}

// runScanCycle is the regular cadence: observe open signals against live
// quotes, then rotate the carousel for new candidates.
func (w *ScanWorker) runScanCycle(ctx context.Context) error {
	isOpen, err := w.marketService.IsMarketOpen()
	if err != nil {
		log.Warn().Err(err).Msg("could not check market status")
	} else if !isOpen {
		log.Info().Msg("market is closed, skipping scan cycle")
		w.notificationService.NotifyMarketClosed()
		return nil
	}

	open, err := w.dbService.LoadOpenSignals(ctx)
	if err != nil {
		w.notificationService.NotifyError("Data Load", "Failed to load open signals", err.Error())
		return fmt.Errorf("failed to load open signals: %w", err)
	}

	excluded := w.monitorOpenSignals(ctx, open)
	w.rotate(ctx, excluded)

	w.notificationService.NotifyScanComplete(len(open), w.newSignals, w.transitions, w.errorCount)
	log.Info().
		Int("open_signals", len(open)).
		Int("new_signals", w.newSignals).
		Int("transitions", w.transitions).
		Int("errors", w.errorCount).
		Msg("scan cycle complete")
	return nil
}

// monitorOpenSignals feeds live quotes through the lifecycle state machine
// and persists every signal that moved. It returns the tickers that still
// hold an open signal, which the rotation pass must not re-enter.
func (w *ScanWorker) monitorOpenSignals(ctx context.Context, open []*signals.Signal) map[string]bool {
	excluded := make(map[string]bool, len(open))
	for _, sig := range open {
		excluded[sig.Ticker] = true
	}
	if len(open) == 0 {
		return excluded
	}

	tickers := make([]string, 0, len(open))
	for _, sig := range open {
		tickers = append(tickers, sig.Ticker)
	}

	quotes, err := w.marketService.GetBulkQuotes(tickers)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch quotes, skipping monitor pass")
		w.errorCount++
		return excluded
	}

	now := time.Now().UTC()
	for _, sig := range open {
		var t *signals.Transition
		price, ok := quotes[sig.Ticker]
		if ok {
			t = signals.Observe(sig, price, now)
		} else {
			// No quote, usually a halt or delisting. The signal still has to
			// give up its slot once its time budget runs out.
			t = signals.ExpireIfDue(sig, now)
			if t == nil {
				log.Debug().Str("ticker", sig.Ticker).Msg("no quote, signal unchanged")
			}
		}
		if t == nil {
			continue
		}
		w.transitions++

		if _, err := w.dbService.SaveSignal(ctx, sig); err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("failed to persist signal transition")
			w.errorCount++
			continue
		}
		if sig.IsTerminal() {
			delete(excluded, sig.Ticker)
		}
		w.notificationService.NotifyTransition(sig, t)
		log.Info().
			Str("ticker", t.Ticker).
			Str("from", string(t.From)).
			Str("to", string(t.To)).
			Str("price", t.Price.StringFixed(2)).
			Msg("signal transition")
	}
	return excluded
}

// rotate runs one carousel cycle and persists any signals it produced.
func (w *ScanWorker) rotate(ctx context.Context, excluded map[string]bool) {
	cfg := w.rotationConfig()
	scheduler := rotation.NewScheduler(w.marketService, w.dbService, w.dbService, w.strat, cfg)

	priorBias := market.BiasNeutral
	if state, err := rotation.LoadState(ctx, w.dbService, cfg.StateKey); err == nil && state != nil && state.Bias != "" {
		priorBias = state.Bias
	}

	produced, cycleErr := scheduler.Cycle(ctx, excluded, time.Now().UTC())

	// The cycle hands back fired signals even when the end-of-cycle state
	// save fails. Persist them before reporting the error; the lost unit of
	// work is only the state blob, never a real signal.
	for _, sig := range produced {
		w.annotateWithJudge(ctx, sig)
		stored, err := w.dbService.SaveSignal(ctx, sig)
		if err != nil {
			log.Error().Err(err).Str("ticker", sig.Ticker).Msg("failed to persist new signal")
			w.errorCount++
			continue
		}
		// A different stored ID means an open signal already held the slot
		// and the write collapsed into a note on it.
		if stored.ID != sig.ID {
			continue
		}
		w.newSignals++
		w.notificationService.NotifySignalCreated(sig)
	}

	if cycleErr != nil {
		log.Error().Err(cycleErr).Msg("rotation cycle failed")
		w.notificationService.NotifyError("Rotation", "Rotation cycle failed", cycleErr.Error())
		w.errorCount++
		return
	}

	if bias := scheduler.State().Bias; bias != "" && bias != priorBias {
		w.notificationService.NotifyMacroBias(string(priorBias), string(bias), cfg.BenchmarkTicker)
	}
}

// annotateWithJudge asks the news judge about the freshest headline and
// records the verdict on the signal. Lexicon scores misread sarcasm and
// legalese; the verdict gives the operator a second opinion before acting.
// Judge failures never block a signal.
func (w *ScanWorker) annotateWithJudge(ctx context.Context, sig *signals.Signal) {
	if !w.judgeClient.Enabled() {
		return
	}

	now := time.Now().UTC()
	news, err := w.marketService.GetNewsSentiment(sig.Ticker, 1, now.AddDate(0, 0, -7), now)
	if err != nil || len(news) == 0 {
		return
	}

	verdict, err := w.judgeClient.ClassifyNews(ctx, sig.Ticker, news[0].Headline, news[0].URL)
	if err != nil {
		log.Debug().Err(err).Str("ticker", sig.Ticker).Msg("news judge unavailable")
		return
	}
	sig.AppendNote(now, "news judge: %s (%s)", verdict.Verdict, verdict.Reason)
}

func (w *ScanWorker) rotationConfig() rotation.Config {
	cfg := rotation.DefaultConfig()
	if w.config.ActiveCap > 0 {
		cfg.ActiveCap = w.config.ActiveCap
	}
	if w.config.BenchmarkTicker != "" {
		cfg.BenchmarkTicker = w.config.BenchmarkTicker
	}
	return cfg
}

// runScreen is phase one: rebuild the candidate table from the full tradable
// universe, keeping only symbols liquid enough to be worth scoring.
func (w *ScanWorker) runScreen(ctx context.Context) error {
	defer w.clearCommand(ctx)
	w.notificationService.NotifyWorkerStart("universe screen")

	tickers, err := w.marketService.ListActiveTickers()
	if err != nil {
		return fmt.Errorf("failed to list tradable assets: %w", err)
	}

	var shaped []string
	for _, t := range tickers {
		if plainSymbol(t) {
			shaped = append(shaped, t)
		}
	}
	log.Info().Int("assets", len(tickers)).Int("shaped", len(shaped)).Msg("screening universe")

	minPrice := decimal.NewFromFloat(w.config.MinSharePrice)
	var candidates []string
	for start := 0; start < len(shaped); start += quoteChunkSize {
		end := start + quoteChunkSize
		if end > len(shaped) {
			end = len(shaped)
		}

		quotes, err := w.marketService.GetBulkQuotes(shaped[start:end])
		if err != nil {
			log.Warn().Err(err).Int("chunk_start", start).Msg("quote chunk failed, skipping")
			w.errorCount++
			continue
		}
		for _, t := range shaped[start:end] {
			price, ok := quotes[t]
			if !ok || price.LessThan(minPrice) {
				continue
			}
			candidates = append(candidates, t)
		}

		w.dbService.SetProgress(ctx, end, len(shaped))
	}

	if w.config.MaxCandidates > 0 && len(candidates) > w.config.MaxCandidates {
		candidates = candidates[:w.config.MaxCandidates]
	}
	if len(candidates) == 0 {
		return fmt.Errorf("screen produced no candidates")
	}

	if err := w.dbService.SetCandidates(ctx, candidates); err != nil {
		return fmt.Errorf("failed to store candidates: %w", err)
	}

	w.dbService.AppendLog(ctx, fmt.Sprintf("screen complete: %d candidates", len(candidates)))
	w.notificationService.NotifyDigest(fmt.Sprintf("🔍 **Screen Complete**\nCandidates: %d", len(candidates)))
	log.Info().Int("candidates", len(candidates)).Msg("screen complete")
	return nil
}

// runDeepScan is phase three: score the entire candidate table once and
// rebuild the carousel reserve from the best-scoring names. The active pool
// is left alone so open positions keep their slots.
func (w *ScanWorker) runDeepScan(ctx context.Context) error {
	defer w.clearCommand(ctx)
	w.notificationService.NotifyWorkerStart("deep scan")

	candidates, err := w.dbService.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no candidates to scan, run a screen first")
	}

	cfg := w.rotationConfig()
	bias := market.BiasNeutral
	scored := make([]scoredTicker, 0, len(candidates))

	for i, ticker := range candidates {
		bars, err := w.marketService.GetDailyBars(ticker, cfg.BarWindow)
		if err != nil || len(bars) == 0 {
			log.Debug().Str("ticker", ticker).Msg("no bars, dropped from deep scan")
			continue
		}
		news, _ := w.marketService.GetNewsSentiment(ticker, cfg.NewsLimit,
			time.Now().UTC().AddDate(0, 0, -30), time.Now().UTC())

		eval, err := w.strat.Evaluate(strategy.History{Ticker: ticker, Bars: market.SortBars(bars), News: news, Bias: bias})
		if err != nil || len(eval.Scores) == 0 {
			continue
		}
		scored = append(scored, scoredTicker{ticker: ticker, score: eval.Scores[len(eval.Scores)-1]})

		if (i+1)%10 == 0 {
			w.dbService.SetProgress(ctx, i+1, len(candidates))
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	reserve := make([]string, 0, len(scored))
	for _, s := range scored {
		reserve = append(reserve, s.ticker)
	}

	if err := w.mergeReserve(ctx, cfg.StateKey, reserve); err != nil {
		return fmt.Errorf("failed to store rebuilt reserve: %w", err)
	}

	w.dbService.AppendLog(ctx, fmt.Sprintf("deep scan complete: %d of %d candidates scored", len(scored), len(candidates)))
	w.notificationService.NotifyDigest(fmt.Sprintf("🔭 **Deep Scan Complete**\nScored: %d\nReserve Rebuilt: %d", len(scored), len(reserve)))
	return nil
}

// mergeReserve swaps the persisted reserve for the rebuilt one, keeping the
// active pool and macro bias untouched.
func (w *ScanWorker) mergeReserve(ctx context.Context, stateKey string, reserve []string) error {
	state, err := rotation.LoadState(ctx, w.dbService, stateKey)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable rotation state, starting fresh")
		state = nil
	}
	if state == nil {
		state = &rotation.PoolState{}
	}

	active := make(map[string]bool, len(state.Active))
	for _, t := range state.Active {
		active[t.Ticker] = true
	}
	filtered := reserve[:0]
	for _, t := range reserve {
		if !active[t] {
			filtered = append(filtered, t)
		}
	}
	state.Reserve = filtered
	state.UpdatedAt = time.Now().UTC()

	return rotation.SaveState(ctx, w.dbService, stateKey, state)
}

// pendingBacktest reads and consumes a queued backtest request. The key is
// cleared before the run starts so a crash cannot replay the request forever.
func (w *ScanWorker) pendingBacktest(ctx context.Context) (*dynamodb.BacktestRequest, bool) {
	raw, found, err := w.dbService.Get(ctx, dynamodb.KeyBacktestRequest)
	if err != nil || !found || raw == "" {
		return nil, false
	}
	if err := w.dbService.Set(ctx, dynamodb.KeyBacktestRequest, ""); err != nil {
		log.Warn().Err(err).Msg("failed to consume backtest request")
		return nil, false
	}
	var req dynamodb.BacktestRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil || req.Year == 0 {
		log.Warn().Str("request", raw).Msg("discarding malformed backtest request")
		return nil, false
	}
	return &req, true
}

// runBacktest executes a queued backtest against the candidate table and
// reports the summary to Discord.
func (w *ScanWorker) runBacktest(ctx context.Context, req *dynamodb.BacktestRequest) error {
	w.notificationService.NotifyWorkerStart(fmt.Sprintf("backtest %d", req.Year))

	strat := w.strat
	if req.Strategy != "" && req.Strategy != w.strat.Name() {
		s, err := strategy.New(req.Strategy, strategy.DefaultParams())
		if err != nil {
			w.notificationService.NotifyError("Backtest", "Unknown strategy requested", err.Error())
			return fmt.Errorf("backtest request rejected: %w", err)
		}
		strat = s
	}

	backtester := backtest.NewBacktester(w.marketService, w.dbService, w.dbService, strat, backtest.Config{
		Year: req.Year,
	})
	results, err := backtester.Run(ctx)
	if err != nil {
		w.notificationService.NotifyError("Backtest", fmt.Sprintf("Backtest for %d failed", req.Year), err.Error())
		return fmt.Errorf("backtest for %d failed: %w", req.Year, err)
	}

	s := backtest.Summarize(results)
	w.notificationService.NotifyDigest(fmt.Sprintf("🧪 **Backtest %d Complete**\n"+
		"Strategy: %s\n"+
		"Trades: %d\n"+
		"Win Rate: %.1f%% (%d/%d)\n"+
		"Avg Return: %.2f%%\n"+
		"Avg Hold: %.1f days",
		req.Year, strat.Name(), s.TotalTrades, s.WinRate, s.Wins, s.Losses, s.AvgReturnPct, s.AvgHoldDays))
	return nil
}

func (w *ScanWorker) clearCommand(ctx context.Context) {
	if err := w.dbService.Set(ctx, dynamodb.KeyWorkerCommand, CommandStart); err != nil {
		log.Warn().Err(err).Msg("failed to reset worker command")
	}
}

type scoredTicker struct {
	ticker string
	score  float64
}

// plainSymbol filters out units, warrants, preferreds and test issues that
// show up in the asset list with dots and dashes in the symbol.
func plainSymbol(symbol string) bool {
	if len(symbol) == 0 || len(symbol) > 5 {
		return false
	}
	if strings.ContainsAny(symbol, ".-/") {
		return false
	}
	for _, r := range symbol {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
