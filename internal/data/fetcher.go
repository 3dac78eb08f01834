// Package data provides market-data fetcher interfaces and implementations.
package data

import (
	"context"
	"time"

	"momentum-lens/internal/models"
)

// Fetcher defines the interface for market-data retrieval. Implementations
// may return partial maps on per-code source failures; a missing code means
// "no data for this code", never an error.
type Fetcher interface {
	// FetchPrices returns daily candles per code for [start, end].
	FetchPrices(ctx context.Context, codes []string, start, end time.Time) (map[string][]models.Candle, error)

	// IOPVQuotes returns live IOPV/premium quotes per code.
	IOPVQuotes(ctx context.Context, codes []string) (map[string]models.IOPVQuote, error)
}
