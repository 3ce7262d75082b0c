package core

import (
	"sort"
	"time"
)

// Venue identifies the listing venue of a Taiwan equity.
type Venue string

const (
	VenueListed Venue = "上市" // TWSE main board
	VenueOTC    Venue = "上櫃" // TPEX over-the-counter
)

// DateKeyLayout is the ledger partition key format.
const DateKeyLayout = "2006/01/02"

// TimestampLayout is the wall-clock format stamped on the today
// document.
const TimestampLayout = "2006/01/02 15:04:05"

// Bar represents one daily OHLCV record. Volume is in shares.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// PriceSeries is a date-ascending sequence of daily bars.
type PriceSeries []Bar

// IsValid checks that the series is non-empty and strictly date-ascending.
func (s PriceSeries) IsValid() bool {
	if len(s) == 0 {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !s[i].Date.After(s[i-1].Date) {
			return false
		}
	}
	return true
}

// Last returns the most recent bar. Callers must check len(s) > 0 first.
func (s PriceSeries) Last() Bar {
	return s[len(s)-1]
}

// Closes extracts the close column.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = s[i].Close
	}
	return out
}

// Volumes extracts the volume column as float64 for indicator math.
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i := range s {
		out[i] = float64(s[i].Volume)
	}
	return out
}

// ChangeRate returns the day-over-day close change in percent,
// computed from the two most recent bars. Zero if fewer than two bars.
func (s PriceSeries) ChangeRate() float64 {
	if len(s) < 2 {
		return 0
	}
	prev := s[len(s)-2].Close
	if prev == 0 {
		return 0
	}
	return (s.Last().Close - prev) / prev * 100
}

// IndexOfDate returns the position of the bar dated d (calendar-day
// comparison), or -1 when the series has no bar on that day.
func (s PriceSeries) IndexOfDate(d time.Time) int {
	y, m, day := d.Date()
	for i := range s {
		by, bm, bd := s[i].Date.Date()
		if by == y && bm == m && bd == day {
			return i
		}
	}
	return -1
}

// Instrument identifies one scannable equity in the universe.
type Instrument struct {
	ID     string // 4-digit exchange code, e.g. "2330"
	Symbol string // provider symbol, e.g. "2330.TW"
	Name   string
	Venue  Venue
	Sector string
}

// Classification is the reference-data lookup result for an instrument.
type Classification struct {
	Name   string
	Sector string
}

// MatchRecord is the output of one evaluator for one instrument on one
// date. Ephemeral: produced and consumed within a single scan pass.
type MatchRecord struct {
	Matched  bool
	Strategy string
	Price    float64
	Values   map[string]float64
}

// ListingEntry is the per-instrument artifact of a single scan day.
// JSON field names mirror the published today-document schema.
type ListingEntry struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Venue      Venue   `json:"type"`
	Sector     string  `json:"sector,omitempty"`
	Price      float64 `json:"price"`
	MA5        float64 `json:"ma5"`
	MA10       float64 `json:"ma10"`
	ChangeRate float64 `json:"changeRate"`
	IsValid    bool    `json:"isValid"`
	Note       string  `json:"note"`
	EntryPrice float64 `json:"entryPrice"`
}

// LedgerEntry is a ListingEntry promoted into the persistent ledger,
// plus tracking fields refreshed on every run. Milestones maps
// held-bar checkpoints (1, 5, 10, 20, 60, 120) to the return-on-entry
// percentage locked as of exactly that bar; once a checkpoint is
// recorded it is never recomputed.
type LedgerEntry struct {
	ListingEntry

	EntryDate        string          `json:"entryDate"` // DateKeyLayout
	LatestPrice      float64         `json:"latestPrice"`
	ReturnPct        float64         `json:"returnPct"`
	SessionChangePct float64         `json:"sessionChangePct"`
	Milestones       map[int]float64 `json:"milestones,omitempty"`
}

// Ledger maps entryDate partition keys (DateKeyLayout) to the entries
// filed under that date. The partitioning is for human browsability;
// logically the ledger is one collection uniquely keyed by instrument
// id, an invariant the storage shape cannot enforce and callers must.
type Ledger map[string][]*LedgerEntry

// Has reports whether the instrument id appears under any date.
func (l Ledger) Has(id string) bool {
	_, ok := l.Find(id)
	return ok
}

// Find returns the entry for an instrument id, wherever it is filed.
func (l Ledger) Find(id string) (*LedgerEntry, bool) {
	for _, entries := range l {
		for _, e := range entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return nil, false
}

// All returns every entry ordered by date key, then file order.
func (l Ledger) All() []*LedgerEntry {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*LedgerEntry
	for _, k := range keys {
		out = append(out, l[k]...)
	}
	return out
}

// Size counts entries across all dates.
func (l Ledger) Size() int {
	n := 0
	for _, entries := range l {
		n += len(entries)
	}
	return n
}

// TodayDocument is the fully-overwritten output of one scan run.
// Date is the run's wall-clock timestamp (TimestampLayout), not the
// ledger partition key.
type TodayDocument struct {
	Date   string         `json:"date"`
	Source string         `json:"source"`
	List   []ListingEntry `json:"list"`
}

// SkipReason classifies why a single instrument was dropped from a
// batch without aborting the run.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipNoData       SkipReason = "no_data"
	SkipFetchFailed  SkipReason = "fetch_failed"
	SkipBadSeries    SkipReason = "bad_series"
	SkipClassifyFail SkipReason = "classify_failed"
)

// ScanResult is the per-instrument outcome of the evaluation step.
// A nil Entry with SkipNone means the instrument evaluated cleanly
// and matched nothing.
type ScanResult struct {
	Instrument Instrument
	Entry      *ListingEntry
	Strategy   string // matched strategy tags, set iff Entry is non-nil
	Skip       SkipReason
}
