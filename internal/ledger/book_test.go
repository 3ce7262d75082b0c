package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chiufan/tidescan/internal/core"
)

// mkSeries builds consecutive daily bars from closes, starting at start.
func mkSeries(start time.Time, closes ...float64) core.PriceSeries {
	s := make(core.PriceSeries, len(closes))
	for i, c := range closes {
		s[i] = core.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return s
}

func fixedFetch(series core.PriceSeries) FetchFunc {
	return func(context.Context, string, int) (core.PriceSeries, error) {
		return series, nil
	}
}

var entryDay = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func newTrackedBook(entryPrice float64) *Book {
	key := entryDay.Format(core.DateKeyLayout)
	b := NewBook(core.Ledger{}, nil)
	b.Commit([]core.ListingEntry{{
		ID:    "2330",
		Name:  "台積電",
		Venue: core.VenueListed,
		Price: entryPrice,
		// entryPrice tracks the close at match time
		EntryPrice: entryPrice,
		IsValid:    true,
	}}, key)
	return b
}

func TestBook_Commit(t *testing.T) {
	b := newTrackedBook(100)

	if got := b.Ledger().Size(); got != 1 {
		t.Fatalf("ledger size = %d, want 1", got)
	}
	e, ok := b.Ledger().Find("2330")
	if !ok {
		t.Fatal("entry missing")
	}
	if e.EntryDate != "2025/07/01" || e.EntryPrice != 100 {
		t.Errorf("entry = %+v", e)
	}
	if e.LatestPrice != 100 {
		t.Errorf("latest price seeded to %v, want entry price", e.LatestPrice)
	}
}

func TestBook_Commit_DedupAcrossDates(t *testing.T) {
	b := newTrackedBook(100)

	// A later scan matches the same instrument at a higher price: no
	// second entry, no overwritten entry price.
	added := b.Commit([]core.ListingEntry{{
		ID: "2330", Venue: core.VenueListed, Price: 120, EntryPrice: 120,
	}}, "2025/07/15")

	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
	if got := b.Ledger().Size(); got != 1 {
		t.Errorf("ledger size = %d, want 1", got)
	}
	e, _ := b.Ledger().Find("2330")
	if e.EntryPrice != 100 || e.EntryDate != "2025/07/01" {
		t.Errorf("first detection not preserved: %+v", e)
	}
	if len(b.Ledger()["2025/07/15"]) != 0 {
		t.Error("duplicate filed under a second date")
	}
}

func TestBook_Refresh_TPlusOne(t *testing.T) {
	b := newTrackedBook(100)

	// The series ends on the entry day itself: zero bars held, so the
	// return must be reported as zero even though intraday prices moved.
	series := mkSeries(entryDay.AddDate(0, 0, -5), 98, 99, 97, 99, 99.5, 103)
	sum := b.Refresh(context.Background(), fixedFetch(series))

	if sum.Refreshed != 1 || sum.Skipped != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	e, _ := b.Ledger().Find("2330")
	if e.ReturnPct != 0 {
		t.Errorf("ReturnPct on entry day = %v, want 0", e.ReturnPct)
	}
	if e.LatestPrice != 103 {
		t.Errorf("LatestPrice = %v, want 103", e.LatestPrice)
	}
	if len(e.Milestones) != 0 {
		t.Errorf("milestones locked on entry day: %v", e.Milestones)
	}
}

func TestBook_Refresh_ReturnAfterOneBar(t *testing.T) {
	b := newTrackedBook(100)

	// One full session has elapsed: live return appears and the 1-bar
	// milestone locks at the same value.
	series := mkSeries(entryDay, 100, 104)
	b.Refresh(context.Background(), fixedFetch(series))

	e, _ := b.Ledger().Find("2330")
	if e.ReturnPct != 4 {
		t.Errorf("ReturnPct = %v, want 4", e.ReturnPct)
	}
	if got := e.Milestones[1]; got != 4 {
		t.Errorf("1-bar milestone = %v, want 4", got)
	}
	// (104 - 100) / 100 session change from the two most recent bars
	if e.SessionChangePct != 4 {
		t.Errorf("SessionChangePct = %v, want 4", e.SessionChangePct)
	}
}

func TestBook_Refresh_MilestoneLocking(t *testing.T) {
	b := newTrackedBook(100)

	// 25 bars after entry, rising 1 per bar: price at bar 20 is 120.
	closes := make([]float64, 26)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	series := mkSeries(entryDay, closes...)
	b.Refresh(context.Background(), fixedFetch(series))

	e, _ := b.Ledger().Find("2330")
	if got := e.Milestones[20]; got != 20 {
		t.Errorf("20-bar milestone = %v, want 20", got)
	}
	if got := e.Milestones[5]; got != 5 {
		t.Errorf("5-bar milestone = %v, want 5", got)
	}
	if _, locked := e.Milestones[60]; locked {
		t.Error("60-bar milestone locked before 60 bars held")
	}

	// Price keeps moving; locked milestones must not.
	longer := append(core.PriceSeries{}, series...)
	longer = append(longer, mkSeries(entryDay.AddDate(0, 0, 26), 250, 260)...)
	b.Refresh(context.Background(), fixedFetch(longer))

	e, _ = b.Ledger().Find("2330")
	if got := e.Milestones[20]; got != 20 {
		t.Errorf("20-bar milestone moved to %v after later refresh", got)
	}
	if e.ReturnPct != 160 {
		t.Errorf("live ReturnPct = %v, want 160", e.ReturnPct)
	}
}

func TestBook_Refresh_Idempotent(t *testing.T) {
	b := newTrackedBook(100)
	series := mkSeries(entryDay, 100, 101, 102, 103, 104, 105, 106)

	b.Refresh(context.Background(), fixedFetch(series))
	e, _ := b.Ledger().Find("2330")
	firstReturn := e.ReturnPct
	firstM5 := e.Milestones[5]

	b.Refresh(context.Background(), fixedFetch(series))
	e, _ = b.Ledger().Find("2330")
	if e.ReturnPct != firstReturn {
		t.Errorf("ReturnPct changed on identical refresh: %v -> %v", firstReturn, e.ReturnPct)
	}
	if e.Milestones[5] != firstM5 {
		t.Errorf("5-bar milestone changed on identical refresh: %v -> %v", firstM5, e.Milestones[5])
	}
}

func TestBook_Refresh_FetchFailureSkips(t *testing.T) {
	b := newTrackedBook(100)
	b.Commit([]core.ListingEntry{{
		ID: "6488", Venue: core.VenueOTC, Price: 500, EntryPrice: 500,
	}}, "2025/07/02")

	failing := func(_ context.Context, symbol string, _ int) (core.PriceSeries, error) {
		if symbol == "2330.TW" {
			return nil, errors.New("provider down")
		}
		return mkSeries(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), 500, 510), nil
	}

	sum := b.Refresh(context.Background(), failing)
	if sum.Refreshed != 1 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	// The failed entry keeps its last-known values.
	e, _ := b.Ledger().Find("2330")
	if e.LatestPrice != 100 {
		t.Errorf("failed entry mutated: %+v", e)
	}
	// The OTC entry resolved through its .TWO symbol and refreshed.
	o, _ := b.Ledger().Find("6488")
	if o.ReturnPct != 2 {
		t.Errorf("6488 ReturnPct = %v, want 2", o.ReturnPct)
	}
}
