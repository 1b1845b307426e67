package backtest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/orion/pkg/trades"
)

// Summary contains overall performance metrics for a run.
type Summary struct {
	TotalTrades   int
	Wins          int
	Losses        int
	WinRate       float64
	AvgReturnPct  float64
	AvgHoldDays   float64
	TargetHits    int
	StopHits      int
	Expired       int
	BestTrade     *trades.Trade
	WorstTrade    *trades.Trade
	TotalReturnPc float64 // simple sum of per-trade returns
}

// Summarize aggregates closed trades into run metrics.
func Summarize(results []*trades.Trade) Summary {
	s := Summary{TotalTrades: len(results)}
	if len(results) == 0 {
		return s
	}

	var retSum, holdSum float64
	for _, tr := range results {
		ret, _ := tr.ProfitPct.Float64()
		retSum += ret
		holdSum += float64(tr.HoldDays)

		if tr.IsWin() {
			s.Wins++
		} else {
			s.Losses++
		}
		switch tr.Status {
		case trades.ClosedTakeProfit:
			s.TargetHits++
		case trades.ClosedStopLoss:
			s.StopHits++
		case trades.ClosedExpired:
			s.Expired++
		}
		if s.BestTrade == nil || tr.ProfitPct.GreaterThan(s.BestTrade.ProfitPct) {
			s.BestTrade = tr
		}
		if s.WorstTrade == nil || tr.ProfitPct.LessThan(s.WorstTrade.ProfitPct) {
			s.WorstTrade = tr
		}
	}
	s.WinRate = float64(s.Wins) / float64(len(results)) * 100
	s.AvgReturnPct = retSum / float64(len(results))
	s.AvgHoldDays = holdSum / float64(len(results))
	s.TotalReturnPc = retSum
	return s
}

// PrintResults prints the backtest results in a table format.
func PrintResults(results []*trades.Trade) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BACKTEST RESULTS")

	sorted := make([]*trades.Trade, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProfitPct.GreaterThan(sorted[j].ProfitPct)
	})

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticker", "Setup", "Opened", "Closed", "Entry", "Stop", "Target", "Close", "Status", "P/L %", "Days")

	for _, tr := range sorted {
		table.Append(tr.Ticker,
			tr.Setup,
			tr.OpenedAt.Format("2006-01-02"),
			tr.ClosedAt.Format("2006-01-02"),
			"$"+tr.EntryPrice.StringFixed(2),
			"$"+tr.StopLoss.StringFixed(2),
			"$"+tr.TakeProfit.StringFixed(2),
			"$"+tr.ClosePrice.StringFixed(2),
			string(tr.Status),
			tr.ProfitPct.StringFixed(2)+"%",
			fmt.Sprintf("%d", tr.HoldDays))
	}
	table.Render()
	fmt.Println(strings.Repeat("=", 80))

	s := Summarize(results)
	fmt.Println("\nPERFORMANCE SUMMARY:")
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("Total Trades: %d\n", s.TotalTrades)
	fmt.Printf("Win Rate: %.1f%% (%d wins / %d losses)\n", s.WinRate, s.Wins, s.Losses)
	fmt.Printf("Target Hits: %d | Stop Hits: %d | Expired: %d\n", s.TargetHits, s.StopHits, s.Expired)
	fmt.Printf("Average Return: %.2f%%\n", s.AvgReturnPct)
	fmt.Printf("Average Hold: %.1f days\n", s.AvgHoldDays)
	if s.BestTrade != nil {
		fmt.Printf("Best: %s %s%%\n", s.BestTrade.Ticker, s.BestTrade.ProfitPct.StringFixed(2))
		fmt.Printf("Worst: %s %s%%\n", s.WorstTrade.Ticker, s.WorstTrade.ProfitPct.StringFixed(2))
	}

	sum := decimal.Zero
	for _, tr := range results {
		sum = sum.Add(tr.ProfitPct)
	}
	fmt.Printf("Cumulative Return (sum of trades): %s%%\n", sum.StringFixed(2))
	fmt.Println(strings.Repeat("=", 80))
}
