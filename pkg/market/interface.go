package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the interface for the market data provider. Every call may
// return (nil, nil) when the provider has no data for the ticker; callers
// treat that as "skip this ticker this cycle", never as fatal.
type Provider interface {
	// GetDailyBars gets up to size daily bars for a ticker, oldest first.
	GetDailyBars(ticker string, size int) ([]Bar, error)

	// GetIntradayBars gets up to size bars at the given interval, oldest first.
	GetIntradayBars(ticker string, interval time.Duration, size int) ([]Bar, error)

	// GetNewsSentiment gets scored news events for a ticker inside [from, to],
	// newest first, capped at limit.
	GetNewsSentiment(ticker string, limit int, from, to time.Time) ([]NewsEvent, error)

	// GetBulkQuotes gets the latest price for each ticker. Tickers with no
	// quote are absent from the result map.
	GetBulkQuotes(tickers []string) (map[string]decimal.Decimal, error)
}

// CalendarProvider reports market session information.
type CalendarProvider interface {
	// IsMarketOpen checks if the market is currently open.
	IsMarketOpen() (bool, error)
}
