package provider

import (
	"context"

	"github.com/chiufan/tidescan/internal/core"
)

// BarProvider fetches daily OHLCV history for a single instrument.
// Implementations must signal "no data" for delisted or newly-listed
// instruments via core.ErrNoData rather than failing the batch.
type BarProvider interface {
	Name() string
	FetchDailyBars(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error)
}

// UniverseLister returns the full set of scannable instruments.
type UniverseLister interface {
	ListUniverse(ctx context.Context) ([]core.Instrument, error)
}

// Classifier maps an instrument id to display name and sector label.
type Classifier interface {
	Classify(ctx context.Context, id string) (core.Classification, error)
}
