package orion

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vignesh-goutham/orion/pkg/alpaca"
	"github.com/vignesh-goutham/orion/pkg/dynamodb"
	"github.com/vignesh-goutham/orion/pkg/rotation"
	"github.com/vignesh-goutham/orion/pkg/signals"
	"github.com/vignesh-goutham/orion/pkg/strategy"
)

var (
	scanStrategy string
	scanConfig   string
	scanTickers  string
	scanTable    string
	scanRegion   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one rotation scan cycle locally",
	Long: `Run a single carousel cycle against live market data and print any
signals it produces. With a DynamoDB table configured the cycle shares state
with the deployed worker; with --tickers it runs stateless against the given
universe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadParams(scanConfig)
		if err != nil {
			return err
		}

		strat, err := strategy.New(scanStrategy, params)
		if err != nil {
			return err
		}

		provider, err := alpaca.NewMarketData()
		if err != nil {
			return fmt.Errorf("error creating alpaca client: %w", err)
		}

		var store rotation.ControlStore
		var candidates rotation.CandidateSource
		if scanTable != "" {
			db, err := dynamodb.NewService(scanRegion, scanTable)
			if err != nil {
				return fmt.Errorf("error creating DynamoDB service: %w", err)
			}
			store = db
			candidates = db
		} else {
			tickers := splitTickers(scanTickers)
			if len(tickers) == 0 {
				return fmt.Errorf("--tickers is required when no DynamoDB table is configured")
			}
			store = &memoryStore{values: map[string]string{}}
			candidates = staticCandidates(tickers)
		}

		scheduler := rotation.NewScheduler(provider, store, candidates, strat, rotation.DefaultConfig())

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		fired, err := scheduler.Cycle(ctx, nil, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("error running scan cycle: %w", err)
		}

		state := scheduler.State()
		fmt.Printf("Scanned %d active slots (%d reserve, bias %s)\n",
			len(state.Active), len(state.Reserve), state.Bias)
		if len(fired) == 0 {
			fmt.Println("No signals fired this cycle")
			return nil
		}
		for _, sig := range fired {
			printSignal(sig)
		}
		return nil
	},
}

func printSignal(sig *signals.Signal) {
	fmt.Printf("%s [%s]\n", sig.Ticker, sig.Status)
	fmt.Printf("\tEntry: $%s\n", sig.Entry.StringFixed(2))
	if sig.EntryZoneBottom != nil && sig.EntryZoneTop != nil {
		fmt.Printf("\tEntry Zone: $%s - $%s\n",
			sig.EntryZoneBottom.StringFixed(2), sig.EntryZoneTop.StringFixed(2))
	}
	fmt.Printf("\tStop Loss: $%s\n", sig.StopLoss.StringFixed(2))
	fmt.Printf("\tTake Profit: $%s\n", sig.TakeProfit.StringFixed(2))
	fmt.Printf("\tRisk/Reward: %s\n", sig.RiskReward.StringFixed(2))
	fmt.Printf("\tScore: %.1f\n\n", sig.Score)
}

// memoryStore keeps rotation state for the duration of one CLI invocation.
type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

type staticCandidates []string

func (s staticCandidates) Candidates(ctx context.Context) ([]string, error) {
	return s, nil
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanStrategy, "strategy", "anomaly", "Strategy to scan with")
	scanCmd.Flags().StringVar(&scanConfig, "config", "", "Path to YAML strategy parameter file")
	scanCmd.Flags().StringVar(&scanTickers, "tickers", "", "Comma-separated candidate universe")
	scanCmd.Flags().StringVar(&scanTable, "table", "", "DynamoDB table for shared rotation state")
	scanCmd.Flags().StringVar(&scanRegion, "region", "us-east-1", "DynamoDB region")
}
