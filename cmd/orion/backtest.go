package orion

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vignesh-goutham/orion/pkg/alpaca"
	"github.com/vignesh-goutham/orion/pkg/backtest"
	"github.com/vignesh-goutham/orion/pkg/dynamodb"
	"github.com/vignesh-goutham/orion/pkg/strategy"
	"github.com/vignesh-goutham/orion/pkg/trades"
)

var (
	backtestYear     int
	backtestStrategy string
	backtestConfig   string
	backtestTickers  string
	backtestTable    string
	backtestRegion   string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy backtest over a historical year",
	Long: `Run a strategy backtest against historical daily bars for a full year.
The ticker universe comes from the candidate table when a DynamoDB table is
configured, otherwise from --tickers.

Example:
  orion backtest --year 2024 --strategy anomaly --tickers NVDA,AMD,SMCI`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := loadParams(backtestConfig)
		if err != nil {
			return err
		}

		strat, err := strategy.New(backtestStrategy, params)
		if err != nil {
			return err
		}

		provider, err := alpaca.NewMarketData()
		if err != nil {
			return fmt.Errorf("error creating alpaca client: %w", err)
		}

		var store backtest.Store
		var universe backtest.CandidateSource
		if backtestTable != "" {
			db, err := dynamodb.NewService(backtestRegion, backtestTable)
			if err != nil {
				return fmt.Errorf("error creating DynamoDB service: %w", err)
			}
			store = db
			universe = db
		} else {
			local := &localStore{}
			store = local
			universe = local
		}

		fallback := splitTickers(backtestTickers)
		if backtestTable == "" && len(fallback) == 0 {
			return fmt.Errorf("--tickers is required when no DynamoDB table is configured")
		}

		backtester := backtest.NewBacktester(provider, store, universe, strat, backtest.Config{
			Year:             backtestYear,
			FallbackUniverse: fallback,
		})

		ctx, cancel := context.WithTimeout(cmd.Context(), 4*time.Hour)
		defer cancel()

		results, err := backtester.Run(ctx)
		if err != nil {
			return fmt.Errorf("error running backtest: %w", err)
		}

		backtest.PrintResults(results)
		return nil
	},
}

// loadParams layers a YAML parameter file over the strategy defaults.
func loadParams(path string) (strategy.Params, error) {
	params := strategy.DefaultParams()
	if path == "" {
		return params, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("error reading strategy config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &params); err != nil {
		return params, fmt.Errorf("error parsing strategy config: %w", err)
	}
	return params, nil
}

func splitTickers(csv string) []string {
	var tickers []string
	for _, t := range strings.Split(csv, ",") {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

// localStore satisfies the backtest persistence contract for table-less CLI
// runs. Results come back from Run directly, so nothing needs to be stored.
type localStore struct{}

func (s *localStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (s *localStore) SaveTrades(ctx context.Context, batch []*trades.Trade) error {
	return nil
}

func (s *localStore) AppendLog(ctx context.Context, message string) error {
	return nil
}

func (s *localStore) SetProgress(ctx context.Context, processed, total int) error {
	return nil
}

func (s *localStore) Candidates(ctx context.Context) ([]string, error) {
	return nil, nil
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().IntVar(&backtestYear, "year", time.Now().Year()-1, "Year to backtest")
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "anomaly", "Strategy to backtest")
	backtestCmd.Flags().StringVar(&backtestConfig, "config", "", "Path to YAML strategy parameter file")
	backtestCmd.Flags().StringVar(&backtestTickers, "tickers", "", "Comma-separated ticker universe")
	backtestCmd.Flags().StringVar(&backtestTable, "table", os.Getenv("TABLE_NAME"), "DynamoDB table for candidates and results")
	backtestCmd.Flags().StringVar(&backtestRegion, "region", "us-east-1", "DynamoDB region")
}
