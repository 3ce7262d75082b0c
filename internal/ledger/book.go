// Package ledger maintains the persistent collection of previously
// flagged instruments and their point-in-time return accounting.
package ledger

import (
	"context"
	"time"

	"github.com/chiufan/tidescan/internal/core"
	"go.uber.org/zap"
)

// MilestoneBars are the holding-period checkpoints, in trading bars.
// Bar counts rather than calendar days keep weekends and holidays from
// skewing the accounting.
var MilestoneBars = []int{1, 5, 10, 20, 60, 120}

// refreshLookbackPad covers suspensions and sparse trading around the
// entry date when sizing the refresh fetch window.
const refreshLookbackPad = 30

// FetchFunc fetches daily bars for a provider symbol.
type FetchFunc func(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error)

// RefreshSummary reports what a refresh pass touched.
type RefreshSummary struct {
	Refreshed int
	Skipped   int
}

// Book wraps a ledger document with the refresh and commit rules.
type Book struct {
	ledger core.Ledger
	logger *zap.Logger
}

// NewBook wraps an existing ledger document.
func NewBook(ledger core.Ledger, logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger == nil {
		ledger = core.Ledger{}
	}
	return &Book{ledger: ledger, logger: logger}
}

// Ledger returns the underlying document.
func (b *Book) Ledger() core.Ledger {
	return b.ledger
}

// Refresh re-fetches every tracked instrument and recomputes live
// return fields. Entry prices are never touched; locked milestones are
// never recomputed. A fetch failure skips that entry and leaves its
// last-known values in place.
func (b *Book) Refresh(ctx context.Context, fetch FetchFunc) RefreshSummary {
	var sum RefreshSummary

	for _, entry := range b.ledger.All() {
		if err := b.refreshEntry(ctx, entry, fetch); err != nil {
			b.logger.Warn("ledger refresh skipped",
				zap.String("id", entry.ID),
				zap.String("entry_date", entry.EntryDate),
				zap.Error(err),
			)
			sum.Skipped++
			continue
		}
		sum.Refreshed++
	}
	return sum
}

func (b *Book) refreshEntry(ctx context.Context, e *core.LedgerEntry, fetch FetchFunc) error {
	entryDate, err := time.Parse(core.DateKeyLayout, e.EntryDate)
	if err != nil {
		return err
	}

	lookback := int(time.Since(entryDate).Hours()/24) + refreshLookbackPad
	if lookback < refreshLookbackPad {
		lookback = refreshLookbackPad
	}

	series, err := fetch(ctx, symbolFor(e), lookback)
	if err != nil {
		return err
	}
	if !series.IsValid() {
		return core.ErrBadSeries
	}

	// Bars held = bars strictly after the entry date. The entry day
	// itself is bar zero.
	firstAfter := -1
	for i := range series {
		if series[i].Date.After(endOfDay(entryDate)) {
			firstAfter = i
			break
		}
	}
	barsHeld := 0
	if firstAfter >= 0 {
		barsHeld = len(series) - firstAfter
	}

	latest := series.Last()
	e.LatestPrice = round2(latest.Close)
	e.SessionChangePct = round2(series.ChangeRate())

	// T+1 rule: no return is reported until a full session has elapsed
	// past the entry day.
	if barsHeld == 0 || e.EntryPrice == 0 {
		e.ReturnPct = 0
	} else {
		e.ReturnPct = round2((latest.Close - e.EntryPrice) / e.EntryPrice * 100)
	}

	if e.EntryPrice == 0 || firstAfter < 0 {
		return nil
	}

	if e.Milestones == nil {
		e.Milestones = make(map[int]float64)
	}
	for _, m := range MilestoneBars {
		if _, locked := e.Milestones[m]; locked {
			continue
		}
		if barsHeld < m {
			continue
		}
		// Return as of exactly the m-th bar after entry, a historical
		// snapshot that stays fixed from here on.
		atBar := series[firstAfter+m-1].Close
		e.Milestones[m] = round2((atBar - e.EntryPrice) / e.EntryPrice * 100)
	}
	return nil
}

// Commit files today's newly matched instruments under dateKey. Any id
// already present anywhere in the ledger is skipped: first detection
// wins, and its entry price is never overwritten. Returns the number
// of entries actually added.
func (b *Book) Commit(entries []core.ListingEntry, dateKey string) int {
	added := 0
	for _, le := range entries {
		if b.ledger.Has(le.ID) {
			b.logger.Debug("ledger commit skipped duplicate",
				zap.String("id", le.ID),
				zap.String("date", dateKey),
			)
			continue
		}
		b.ledger[dateKey] = append(b.ledger[dateKey], &core.LedgerEntry{
			ListingEntry: le,
			EntryDate:    dateKey,
			LatestPrice:  le.Price,
			Milestones:   make(map[int]float64),
		})
		added++
	}
	return added
}

// symbolFor rebuilds the provider symbol from the ledger entry.
func symbolFor(e *core.LedgerEntry) string {
	if e.Venue == core.VenueOTC {
		return e.ID + ".TWO"
	}
	return e.ID + ".TW"
}

func endOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
