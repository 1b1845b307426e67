package alpaca

import (
	"fmt"
	"os"
	"strings"
	"time"

	alpacav2 "github.com/alpacahq/alpaca-trade-api-go/v2/alpaca"
	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v2/marketdata"
	"github.com/shopspring/decimal"
	"github.com/vignesh-goutham/orion/pkg/market"
)

// MarketData implements the market data provider interface on Alpaca.
type MarketData struct {
	data    alpacadata.Client
	trading alpacav2.Client
}

// NewMarketData creates a new Alpaca-backed provider from environment
// credentials.
func NewMarketData() (*MarketData, error) {
	apiKey := os.Getenv("ALPACA_API_KEY")
	secretKey := os.Getenv("ALPACA_SECRET_KEY")
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}

	return &MarketData{
		data: alpacadata.NewClient(alpacadata.ClientOpts{
			ApiKey:    apiKey,
			ApiSecret: secretKey,
		}),
		trading: alpacav2.NewClient(alpacav2.ClientOpts{
			ApiKey:    apiKey,
			ApiSecret: secretKey,
		}),
	}, nil
}

// GetDailyBars gets up to size daily bars for a ticker, oldest first.
// Returns (nil, nil) when Alpaca has no data for the symbol.
func (m *MarketData) GetDailyBars(ticker string, size int) ([]market.Bar, error) {
	end := time.Now().UTC()
	// Weekends and holidays mean ~1.45 calendar days per trading day.
	start := end.AddDate(0, 0, -size*3/2-5)

	bars, err := m.data.GetBars(ticker, alpacadata.GetBarsParams{
		TimeFrame: alpacadata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting daily bars for %s: %w", ticker, err)
	}
	out := convertBars(bars)
	if len(out) > size {
		out = out[len(out)-size:]
	}
	return out, nil
}

// GetIntradayBars gets up to size bars at the given interval, oldest first.
func (m *MarketData) GetIntradayBars(ticker string, interval time.Duration, size int) ([]market.Bar, error) {
	minutes := int(interval.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	end := time.Now().UTC()
	start := end.Add(-time.Duration(size*minutes*3) * time.Minute)

	bars, err := m.data.GetBars(ticker, alpacadata.GetBarsParams{
		TimeFrame: alpacadata.NewTimeFrame(minutes, alpacadata.Min),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting intraday bars for %s: %w", ticker, err)
	}
	out := convertBars(bars)
	if len(out) > size {
		out = out[len(out)-size:]
	}
	return out, nil
}

// GetNewsSentiment gets news for a ticker inside [from, to], newest first,
// with a lexicon-scored headline sentiment. The AI judge refines individual
// headlines on demand; this bulk score only has to be directionally right.
func (m *MarketData) GetNewsSentiment(ticker string, limit int, from, to time.Time) ([]market.NewsEvent, error) {
	news, err := m.data.GetNews(alpacadata.GetNewsParams{
		Symbols:    []string{ticker},
		Start:      from,
		End:        to,
		TotalLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("error getting news for %s: %w", ticker, err)
	}

	events := make([]market.NewsEvent, 0, len(news))
	for _, n := range news {
		events = append(events, market.NewsEvent{
			Timestamp: n.CreatedAt,
			Score:     scoreHeadline(n.Headline),
			Topics:    topicTags(n.Headline),
			Headline:  n.Headline,
			URL:       n.URL,
		})
	}
	return events, nil
}

// GetBulkQuotes gets the latest trade price for each ticker via snapshots.
// Tickers with no quote are absent from the result map.
func (m *MarketData) GetBulkQuotes(tickers []string) (map[string]decimal.Decimal, error) {
	snapshots, err := m.data.GetSnapshots(tickers)
	if err != nil {
		return nil, fmt.Errorf("error getting snapshots: %w", err)
	}

	quotes := make(map[string]decimal.Decimal, len(snapshots))
	for ticker, snap := range snapshots {
		if snap == nil || snap.LatestTrade == nil {
			continue
		}
		quotes[ticker] = decimal.NewFromFloat(snap.LatestTrade.Price)
	}
	return quotes, nil
}

// IsMarketOpen checks if the market is currently open.
func (m *MarketData) IsMarketOpen() (bool, error) {
	clock, err := m.trading.GetClock()
	if err != nil {
		return false, fmt.Errorf("failed to get market clock: %w", err)
	}
	return clock.IsOpen, nil
}

// ListActiveTickers enumerates active, tradable US equities for the
// screening phase.
func (m *MarketData) ListActiveTickers() ([]string, error) {
	status := "active"
	assets, err := m.trading.ListAssets(&status)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	tickers := make([]string, 0, len(assets))
	for _, a := range assets {
		if a.Tradable {
			tickers = append(tickers, a.Symbol)
		}
	}
	return tickers, nil
}

func convertBars(bars []alpacadata.Bar) []market.Bar {
	out := make([]market.Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, market.Bar{
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	return market.SortBars(out)
}

var positiveWords = []string{
	"beat", "beats", "surge", "soars", "record", "upgrade", "upgraded",
	"approval", "approved", "wins", "growth", "strong", "raises", "buyback",
}

var negativeWords = []string{
	"miss", "misses", "plunge", "falls", "downgrade", "downgraded", "lawsuit",
	"recall", "probe", "cuts", "weak", "warning", "bankruptcy", "layoffs",
}

// scoreHeadline is a crude lexicon score in [-1, 1].
func scoreHeadline(headline string) float64 {
	lower := strings.ToLower(headline)
	score := 0.0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.35
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.35
		}
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

var topicKeywords = map[string]string{
	"earnings": "earnings", "guidance": "earnings", "fda": "regulatory",
	"sec": "regulatory", "merger": "m&a", "acquisition": "m&a",
	"dividend": "capital", "buyback": "capital", "lawsuit": "legal",
}

func topicTags(headline string) []string {
	lower := strings.ToLower(headline)
	seen := map[string]bool{}
	var tags []string
	for keyword, tag := range topicKeywords {
		if strings.Contains(lower, keyword) && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
