package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/evaluator"
	"github.com/chiufan/tidescan/internal/provider"
)

// thresholdEvaluator matches any series whose last close is at or
// above the threshold.
type thresholdEvaluator struct {
	threshold float64
}

func (e *thresholdEvaluator) Name() string                { return "threshold" }
func (e *thresholdEvaluator) Description() string         { return "last close at or above a floor" }
func (e *thresholdEvaluator) RequiredBars() int           { return 1 }
func (e *thresholdEvaluator) Init(evaluator.Config) error { return nil }
func (e *thresholdEvaluator) Evaluate(s core.PriceSeries) core.MatchRecord {
	last := s.Last()
	if last.Close < e.threshold {
		return core.MatchRecord{}
	}
	return core.MatchRecord{
		Matched:  true,
		Strategy: "Threshold",
		Price:    last.Close,
		Values: map[string]float64{
			"vol_ratio": 0.8,
			"ma240":     92.5,
		},
	}
}

type fetchReply struct {
	series core.PriceSeries
	err    error
}

// fakeProvider serves canned replies and counts calls per symbol.
type fakeProvider struct {
	mu      sync.Mutex
	replies map[string][]fetchReply
	calls   map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		replies: make(map[string][]fetchReply),
		calls:   make(map[string]int),
	}
}

func (p *fakeProvider) Name() string { return "fake" }

// on queues replies for a symbol; the last reply repeats.
func (p *fakeProvider) on(symbol string, replies ...fetchReply) {
	p.replies[symbol] = replies
}

func (p *fakeProvider) FetchDailyBars(_ context.Context, symbol string, _ int) (core.PriceSeries, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[symbol]++
	rs := p.replies[symbol]
	if len(rs) == 0 {
		return nil, core.ErrNoData
	}
	i := p.calls[symbol] - 1
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i].series, rs[i].err
}

func (p *fakeProvider) callCount(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

type fakeClassifier struct {
	byID map[string]core.Classification
	err  error
}

func (c *fakeClassifier) Classify(_ context.Context, id string) (core.Classification, error) {
	if c.err != nil {
		return core.Classification{}, c.err
	}
	cls, ok := c.byID[id]
	if !ok {
		return core.Classification{}, errors.New("unknown id")
	}
	return cls, nil
}

func bars(n int, lastClose float64) core.PriceSeries {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(core.PriceSeries, n)
	for i := range s {
		c := lastClose - float64(n-1-i)
		s[i] = core.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return s
}

func newTestEngine(threshold float64) *evaluator.Engine {
	eng := evaluator.NewEngine()
	eng.Register(&thresholdEvaluator{threshold: threshold})
	return eng
}

func inst(id, name string, venue core.Venue) core.Instrument {
	suffix := ".TW"
	if venue == core.VenueOTC {
		suffix = ".TWO"
	}
	return core.Instrument{ID: id, Symbol: id + suffix, Name: name, Venue: venue}
}

func TestOrchestrator_Scan(t *testing.T) {
	p := newFakeProvider()
	p.on("2330.TW", fetchReply{series: bars(10, 150)})  // match
	p.on("6488.TWO", fetchReply{series: bars(10, 500)}) // match
	p.on("1101.TW", fetchReply{series: bars(10, 40)})   // evaluated, no match
	p.on("9999.TW", fetchReply{err: core.ErrNoData})

	cls := &fakeClassifier{byID: map[string]core.Classification{
		"2330": {Name: "台積電", Sector: "半導體業"},
		"6488": {Name: "環球晶", Sector: "半導體業"},
	}}

	o := New(p, cls, newTestEngine(100), nil, Config{Concurrency: 3}, nil)
	universe := []core.Instrument{
		inst("6488", "環球晶", core.VenueOTC),
		inst("2330", "台積電", core.VenueListed),
		inst("9999", "幽靈", core.VenueListed),
		inst("1101", "台泥", core.VenueListed),
	}

	results, sum := o.Scan(context.Background(), universe)

	if sum.Scanned != 4 || sum.Matched != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Skipped[core.SkipNoData] != 1 {
		t.Errorf("no-data skips = %d, want 1", sum.Skipped[core.SkipNoData])
	}
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}

	// Results come back ordered by id regardless of worker timing.
	for i, want := range []string{"1101", "2330", "6488", "9999"} {
		if results[i].Instrument.ID != want {
			t.Fatalf("results[%d].ID = %s, want %s", i, results[i].Instrument.ID, want)
		}
	}

	if results[0].Entry != nil || results[0].Skip != core.SkipNone {
		t.Errorf("non-matching instrument produced %+v", results[0])
	}

	e := results[1].Entry
	if e == nil {
		t.Fatal("2330 produced no entry")
	}
	if e.Name != "台積電" || e.Sector != "半導體業" || e.Venue != core.VenueListed {
		t.Errorf("entry identity = %+v", e)
	}
	if e.Price != 150 || e.EntryPrice != 150 {
		t.Errorf("entry price = %v / %v, want 150", e.Price, e.EntryPrice)
	}
	// Flat +1 staircase: ma5 of 146..150 is 148.
	if e.MA5 != 148 {
		t.Errorf("MA5 = %v, want 148", e.MA5)
	}
	if !e.IsValid {
		t.Error("entry not marked valid")
	}
	if !strings.Contains(e.Note, "Threshold") || !strings.Contains(e.Note, "量比0.80") {
		t.Errorf("note = %q", e.Note)
	}
	// The matched tag rides on the result itself, not just the note.
	if results[1].Strategy != "Threshold" {
		t.Errorf("strategy = %q, want Threshold", results[1].Strategy)
	}
	if results[0].Strategy != "" {
		t.Errorf("non-match carries strategy %q", results[0].Strategy)
	}
}

func TestOrchestrator_Scan_RetriesTransientFailure(t *testing.T) {
	p := newFakeProvider()
	p.on("2330.TW",
		fetchReply{err: errors.New("connection reset")},
		fetchReply{series: bars(10, 150)},
	)

	o := New(p, nil, newTestEngine(100), nil, Config{Concurrency: 1, Retries: 1}, nil)
	results, sum := o.Scan(context.Background(), []core.Instrument{inst("2330", "台積電", core.VenueListed)})

	if got := p.callCount("2330.TW"); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if sum.Matched != 1 || results[0].Entry == nil {
		t.Errorf("retried fetch did not recover: %+v", sum)
	}
}

func TestOrchestrator_Scan_ExhaustedRetriesSkip(t *testing.T) {
	p := newFakeProvider()
	p.on("2330.TW", fetchReply{err: errors.New("connection reset")})

	o := New(p, nil, newTestEngine(100), nil, Config{Concurrency: 1, Retries: 1}, nil)
	results, sum := o.Scan(context.Background(), []core.Instrument{inst("2330", "台積電", core.VenueListed)})

	if got := p.callCount("2330.TW"); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if sum.Skipped[core.SkipFetchFailed] != 1 || results[0].Skip != core.SkipFetchFailed {
		t.Errorf("exhausted retries not recorded as skip: %+v", results[0])
	}
}

func TestOrchestrator_Scan_NoDataNotRetried(t *testing.T) {
	p := newFakeProvider()
	p.on("9999.TW", fetchReply{err: core.ErrNoData})

	o := New(p, nil, newTestEngine(100), nil, Config{Concurrency: 1, Retries: 2}, nil)
	o.Scan(context.Background(), []core.Instrument{inst("9999", "幽靈", core.VenueListed)})

	if got := p.callCount("9999.TW"); got != 1 {
		t.Errorf("no-data fetch retried %d times", got-1)
	}
}

func TestOrchestrator_Scan_ClassifierFallback(t *testing.T) {
	p := newFakeProvider()
	p.on("2330.TW", fetchReply{series: bars(10, 150)})

	// Classification is down; the universe row still names the stock,
	// so the match survives with the fallback identity.
	o := New(p, &fakeClassifier{err: errors.New("service down")}, newTestEngine(100), nil, Config{Concurrency: 1}, nil)
	results, sum := o.Scan(context.Background(), []core.Instrument{inst("2330", "台積電", core.VenueListed)})

	if sum.Matched != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if results[0].Entry.Name != "台積電" {
		t.Errorf("fallback name = %q", results[0].Entry.Name)
	}

	// Without even a universe name the match cannot be published.
	results, sum = o.Scan(context.Background(), []core.Instrument{{ID: "2330", Symbol: "2330.TW", Venue: core.VenueListed}})
	if sum.Skipped[core.SkipClassifyFail] != 1 || results[0].Skip != core.SkipClassifyFail {
		t.Errorf("nameless match not skipped: %+v", results[0])
	}
}

func TestOrchestrator_Scan_PacedFetches(t *testing.T) {
	p := newFakeProvider()
	for _, id := range []string{"1101", "1102", "1103"} {
		p.on(id+".TW", fetchReply{series: bars(10, 40)})
	}

	// 100 rps with burst 1 forces sequential token grants; the scan
	// must still complete promptly.
	pacer := provider.NewPacer(100, 1)
	o := New(p, nil, newTestEngine(1000), pacer, Config{Concurrency: 3}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Scan(context.Background(), []core.Instrument{
			inst("1101", "a", core.VenueListed),
			inst("1102", "b", core.VenueListed),
			inst("1103", "c", core.VenueListed),
		})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("paced scan did not finish")
	}
}
