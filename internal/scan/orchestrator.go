// Package scan runs the batch evaluation pass: fan a universe of
// instruments across a worker pool, fetch history, run the evaluator
// engine, and collect per-instrument outcomes without ever aborting
// the batch for a single symbol.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/evaluator"
	"github.com/chiufan/tidescan/internal/indicator"
	"github.com/chiufan/tidescan/internal/provider"
	"go.uber.org/zap"
)

const (
	defaultConcurrency  = 8
	defaultLookbackDays = 730
)

// Config controls pool sizing and fetch behavior.
type Config struct {
	Concurrency  int
	LookbackDays int
	// Retries is the number of additional fetch attempts after the
	// first failure. No-data responses are never retried.
	Retries      int
	RetryBackoff time.Duration
}

// Summary aggregates one scan pass.
type Summary struct {
	Scanned int
	Matched int
	Skipped map[core.SkipReason]int
}

// SkippedTotal sums skips across all reasons.
func (s Summary) SkippedTotal() int {
	n := 0
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// Orchestrator coordinates the worker pool for one scan pass.
type Orchestrator struct {
	cfg        Config
	bars       provider.BarProvider
	classifier provider.Classifier
	engine     *evaluator.Engine
	pacer      *provider.Pacer
	logger     *zap.Logger
}

// New creates an orchestrator. classifier may be nil, in which case
// universe names and sectors are used as-is.
func New(bars provider.BarProvider, classifier provider.Classifier, engine *evaluator.Engine, pacer *provider.Pacer, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaultLookbackDays
	}
	if pacer == nil {
		pacer = provider.NewPacer(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		bars:       bars,
		classifier: classifier,
		engine:     engine,
		pacer:      pacer,
		logger:     logger,
	}
}

// Scan evaluates the whole universe and returns one result per
// instrument, ordered by id, plus the pass summary. Individual
// failures are recorded as skips; only context cancellation cuts the
// pass short.
func (o *Orchestrator) Scan(ctx context.Context, universe []core.Instrument) ([]core.ScanResult, Summary) {
	start := time.Now()
	jobs := make(chan core.Instrument)
	out := make(chan core.ScanResult)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.runWorker(ctx, jobs, out)
		}()
	}

	go func() {
		defer close(jobs)
		for _, inst := range universe {
			select {
			case <-ctx.Done():
				return
			case jobs <- inst:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]core.ScanResult, 0, len(universe))
	sum := Summary{Skipped: make(map[core.SkipReason]int)}
	for r := range out {
		results = append(results, r)
		sum.Scanned++
		switch {
		case r.Skip != core.SkipNone:
			sum.Skipped[r.Skip]++
		case r.Entry != nil:
			sum.Matched++
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Instrument.ID < results[j].Instrument.ID
	})

	o.logger.Info("scan pass finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("matched", sum.Matched),
		zap.Int("skipped", sum.SkippedTotal()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return results, sum
}

func (o *Orchestrator) runWorker(ctx context.Context, jobs <-chan core.Instrument, out chan<- core.ScanResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case inst, ok := <-jobs:
			if !ok {
				return
			}
			res := o.scanOne(ctx, inst)
			select {
			case <-ctx.Done():
				return
			case out <- res:
			}
		}
	}
}

func (o *Orchestrator) scanOne(ctx context.Context, inst core.Instrument) core.ScanResult {
	res := core.ScanResult{Instrument: inst}

	series, err := o.fetchWithRetry(ctx, inst.Symbol)
	if err != nil {
		if errors.Is(err, core.ErrNoData) {
			res.Skip = core.SkipNoData
		} else {
			res.Skip = core.SkipFetchFailed
			o.logger.Warn("fetch failed",
				zap.String("symbol", inst.Symbol),
				zap.Error(err),
			)
		}
		return res
	}
	if !series.IsValid() {
		res.Skip = core.SkipBadSeries
		return res
	}

	rec, matched := o.engine.Evaluate(inst.Symbol, series)
	if !matched {
		return res
	}

	entry := o.buildEntry(ctx, inst, series, rec)
	if entry == nil {
		res.Skip = core.SkipClassifyFail
		return res
	}
	res.Entry = entry
	res.Strategy = rec.Strategy
	return res
}

func (o *Orchestrator) fetchWithRetry(ctx context.Context, symbol string) (core.PriceSeries, error) {
	var lastErr error
	attempts := o.cfg.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if err := o.pacer.Wait(ctx); err != nil {
			return nil, err
		}
		series, err := o.bars.FetchDailyBars(ctx, symbol, o.cfg.LookbackDays)
		if err == nil {
			return series, nil
		}
		if errors.Is(err, core.ErrNoData) {
			return nil, err
		}
		lastErr = err
		if attempt < attempts-1 && o.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.cfg.RetryBackoff):
			}
		}
	}
	return nil, lastErr
}

// buildEntry assembles the published listing row for a match. Returns
// nil only when the instrument cannot be named at all.
func (o *Orchestrator) buildEntry(ctx context.Context, inst core.Instrument, s core.PriceSeries, rec core.MatchRecord) *core.ListingEntry {
	name, sector := inst.Name, inst.Sector
	if o.classifier != nil {
		cls, err := o.classifier.Classify(ctx, inst.ID)
		if err != nil {
			o.logger.Warn("classification failed",
				zap.String("id", inst.ID),
				zap.Error(err),
			)
		} else {
			if cls.Name != "" {
				name = cls.Name
			}
			if cls.Sector != "" {
				sector = cls.Sector
			}
		}
	}
	if name == "" {
		return nil
	}

	closes := s.Closes()
	ma5, _ := indicator.LastMA(closes, 5)
	ma10, _ := indicator.LastMA(closes, 10)
	price := round2(s.Last().Close)

	return &core.ListingEntry{
		ID:         inst.ID,
		Name:       name,
		Venue:      inst.Venue,
		Sector:     sector,
		Price:      price,
		MA5:        round2(ma5),
		MA10:       round2(ma10),
		ChangeRate: round2(s.ChangeRate()),
		IsValid:    true,
		Note:       buildNote(rec),
		EntryPrice: price,
	}
}

// buildNote renders the human-readable annotation: the matched
// strategy tags plus the volume-ratio and annual-line readings when
// the snapshot carries them.
func buildNote(rec core.MatchRecord) string {
	vr, hasVR := rec.Values["vol_ratio"]
	al, hasAL := rec.Values["ma240"]
	if hasVR && hasAL {
		return fmt.Sprintf("%s | 量比%.2f / 年線%.2f", rec.Strategy, vr, al)
	}
	return rec.Strategy
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
