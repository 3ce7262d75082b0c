// Package app wires the scanner's pieces into the batch entrypoints
// the CLI exposes: a full scan run and a ledger-only refresh.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/chiufan/tidescan/internal/config"
	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/evaluator"
	"github.com/chiufan/tidescan/internal/ledger"
	"github.com/chiufan/tidescan/internal/logger"
	"github.com/chiufan/tidescan/internal/marketclock"
	"github.com/chiufan/tidescan/internal/metrics"
	"github.com/chiufan/tidescan/internal/notifier"
	"github.com/chiufan/tidescan/internal/provider"
	"github.com/chiufan/tidescan/internal/scan"
	"github.com/chiufan/tidescan/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps carries the external collaborators so tests can substitute any
// of them.
type Deps struct {
	Bars       provider.BarProvider
	Universe   provider.UniverseLister
	Classifier provider.Classifier
	Engine     *evaluator.Engine
	Notifiers  *notifier.Registry
	Documents  *storage.Documents
	Clock      marketclock.Clock
	Metrics    *metrics.Registry
	Now        func() time.Time
}

// App is the batch-run orchestrator.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	bars       provider.BarProvider
	universe   provider.UniverseLister
	classifier *provider.CachedClassifier
	engine     *evaluator.Engine
	notifiers  *notifier.Registry
	docs       *storage.Documents
	policy     *ledger.Policy
	registry   *metrics.Registry
	pacer      *provider.Pacer
	now        func() time.Time
}

// New creates an App instance.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = marketclock.NewTaiwan()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Notifiers == nil {
		deps.Notifiers = notifier.NewRegistry()
	}
	return &App{
		cfg:        cfg,
		logger:     logger,
		bars:       deps.Bars,
		universe:   deps.Universe,
		classifier: provider.NewCachedClassifier(deps.Classifier),
		engine:     deps.Engine,
		notifiers:  deps.Notifiers,
		docs:       deps.Documents,
		policy:     ledger.NewPolicy(deps.Clock),
		registry:   deps.Metrics,
		pacer:      provider.NewPacer(cfg.Provider.RequestsPerSec, cfg.Provider.Burst),
		now:        deps.Now,
	}
}

// Run executes one full batch: refresh the ledger, scan the universe,
// commit matches when the session gate allows, persist all documents,
// then fan out the digest. Persistence failure is fatal; notification
// failure is not.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.New().String()
	log := logger.ForRun(a.logger, runID)
	now := a.now()

	led, err := a.docs.LoadLedger(ctx)
	if err != nil {
		return err
	}
	cache, err := a.docs.LoadIndustryCache(ctx)
	if err != nil {
		return err
	}
	a.classifier.Preload(cache)

	book := ledger.NewBook(led, log)
	a.refreshLedger(ctx, book, log)

	universe, err := a.universe.ListUniverse(ctx)
	if err != nil {
		// The refresh already ran; keep its results even though the
		// run is now fatal.
		if saveErr := a.docs.SaveLedger(ctx, book.Ledger()); saveErr != nil {
			log.Warn("saving refreshed ledger after universe failure", zap.Error(saveErr))
		}
		return err
	}
	log.Info("universe listed", zap.Int("instruments", len(universe)))
	if a.registry != nil {
		a.registry.SetUniverseSize(len(universe))
	}

	orch := scan.New(a.bars, a.classifier, a.engine, a.pacer, scan.Config{
		Concurrency:  a.cfg.Provider.Concurrency,
		LookbackDays: a.cfg.Provider.LookbackDays,
		Retries:      a.cfg.Provider.Retries,
		RetryBackoff: a.cfg.Provider.RetryBackoff,
	}, log)

	scanStart := time.Now()
	results, sum := orch.Scan(ctx, universe)
	if err := ctx.Err(); err != nil {
		return err
	}
	a.recordScan(sum, results, time.Since(scanStart))

	entries := collectEntries(results)
	dateKey := a.policy.FileDateKey(now)

	doc := core.TodayDocument{
		Date:   now.Format(core.TimestampLayout),
		Source: runID,
		List:   entries,
	}

	if a.policy.ShouldCommit(now) || a.cfg.Session.ForceCommit {
		added := book.Commit(entries, dateKey)
		log.Info("ledger commit",
			zap.String("date", dateKey),
			zap.Int("matches", len(entries)),
			zap.Int("added", added),
		)
	} else {
		log.Info("ledger commit withheld, session open",
			zap.Int("matches", len(entries)),
		)
	}

	if err := a.persist(ctx, doc, book); err != nil {
		return err
	}
	if a.registry != nil {
		a.registry.SetLedgerSize(book.Ledger().Size())
	}

	a.sendDigest(doc, log)

	log.Info("run finished",
		zap.Int("scanned", sum.Scanned),
		zap.Int("matched", sum.Matched),
		zap.Int("skipped", sum.SkippedTotal()),
	)
	return nil
}

// RunRefresh executes only the ledger refresh and persists the result.
func (a *App) RunRefresh(ctx context.Context) error {
	led, err := a.docs.LoadLedger(ctx)
	if err != nil {
		return err
	}

	book := ledger.NewBook(led, a.logger)
	a.refreshLedger(ctx, book, a.logger)

	if err := a.docs.SaveLedger(ctx, book.Ledger()); err != nil {
		return err
	}
	if a.registry != nil {
		a.registry.SetLedgerSize(book.Ledger().Size())
	}
	return nil
}

func (a *App) refreshLedger(ctx context.Context, book *ledger.Book, log *zap.Logger) {
	start := time.Now()
	sum := book.Refresh(ctx, a.fetchPaced)
	elapsed := time.Since(start)

	log.Info("ledger refreshed",
		zap.Int("refreshed", sum.Refreshed),
		zap.Int("skipped", sum.Skipped),
		zap.Duration("elapsed", elapsed),
	)
	if a.registry != nil {
		a.registry.RecordRefreshPass(elapsed.Seconds())
	}
}

// fetchPaced is the ledger's fetch function: same provider and rate
// budget as the scan.
func (a *App) fetchPaced(ctx context.Context, symbol string, lookbackDays int) (core.PriceSeries, error) {
	if err := a.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	series, err := a.bars.FetchDailyBars(ctx, symbol, lookbackDays)
	if err != nil && a.registry != nil {
		a.registry.RecordProviderError(a.bars.Name())
	}
	return series, err
}

// persist writes all three documents. Results that cannot be saved
// make the whole run worthless, so the first failure aborts.
func (a *App) persist(ctx context.Context, doc core.TodayDocument, book *ledger.Book) error {
	if err := a.docs.SaveToday(ctx, doc); err != nil {
		return fmt.Errorf("saving today document: %w", err)
	}
	if err := a.docs.SaveLedger(ctx, book.Ledger()); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	if err := a.docs.SaveIndustryCache(ctx, a.classifier.Snapshot()); err != nil {
		return fmt.Errorf("saving industry cache: %w", err)
	}
	return nil
}

func (a *App) sendDigest(doc core.TodayDocument, log *zap.Logger) {
	errs := a.notifiers.NotifyAll(doc)
	for name, err := range errs {
		log.Warn("digest delivery failed",
			zap.String("notifier", name),
			zap.Error(err),
		)
		if a.registry != nil {
			a.registry.RecordDigest(name, "failed")
		}
	}
	for _, n := range a.notifiers.GetAll() {
		if _, failed := errs[n.Name()]; !failed && a.registry != nil {
			a.registry.RecordDigest(n.Name(), "sent")
		}
	}
}

func (a *App) recordScan(sum scan.Summary, results []core.ScanResult, elapsed time.Duration) {
	if a.registry == nil {
		return
	}
	a.registry.RecordScanned(sum.Scanned)
	a.registry.RecordScanPass(elapsed.Seconds())
	for reason, count := range sum.Skipped {
		for i := 0; i < count; i++ {
			a.registry.RecordSkip(string(reason))
		}
	}
	for _, r := range results {
		if r.Entry != nil {
			a.registry.RecordMatch(r.Strategy)
		}
	}
}

func collectEntries(results []core.ScanResult) []core.ListingEntry {
	// Non-nil so an empty day serializes as [] rather than null.
	entries := make([]core.ListingEntry, 0, len(results))
	for _, r := range results {
		if r.Entry != nil {
			entries = append(entries, *r.Entry)
		}
	}
	return entries
}
