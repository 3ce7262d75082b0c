package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	symbolsScanned  prometheus.Counter
	symbolsMatched  *prometheus.CounterVec
	symbolsSkipped  *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	refreshDuration prometheus.Histogram
	providerErrors  *prometheus.CounterVec
	digestsSent     *prometheus.CounterVec
	ledgerEntries   prometheus.Gauge
	universeSize    prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		symbolsScanned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tidescan_symbols_scanned_total",
				Help: "Total number of symbols evaluated across scan runs",
			},
		),
		symbolsMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidescan_symbols_matched_total",
				Help: "Total number of symbols matched, by strategy tag",
			},
			[]string{"strategy"},
		),
		symbolsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidescan_symbols_skipped_total",
				Help: "Total number of symbols skipped, by reason",
			},
			[]string{"reason"},
		),
		scanDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tidescan_scan_duration_seconds",
				Help:    "Full scan pass duration in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
			},
		),
		refreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tidescan_ledger_refresh_duration_seconds",
				Help:    "Ledger refresh pass duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidescan_provider_errors_total",
				Help: "Total number of provider request failures",
			},
			[]string{"provider"},
		),
		digestsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tidescan_digests_sent_total",
				Help: "Total number of match digests sent to notifiers",
			},
			[]string{"notifier", "status"},
		),
		ledgerEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tidescan_ledger_entries",
				Help: "Number of instruments tracked in the ledger",
			},
		),
		universeSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tidescan_universe_size",
				Help: "Number of instruments in the scan universe",
			},
		),
	}

	reg.MustRegister(r.symbolsScanned)
	reg.MustRegister(r.symbolsMatched)
	reg.MustRegister(r.symbolsSkipped)
	reg.MustRegister(r.scanDuration)
	reg.MustRegister(r.refreshDuration)
	reg.MustRegister(r.providerErrors)
	reg.MustRegister(r.digestsSent)
	reg.MustRegister(r.ledgerEntries)
	reg.MustRegister(r.universeSize)

	return r
}

// RecordScanned adds evaluated symbols to the running total.
func (r *Registry) RecordScanned(count int) {
	r.symbolsScanned.Add(float64(count))
}

// RecordMatch records one matched symbol under its strategy tag.
func (r *Registry) RecordMatch(strategy string) {
	r.symbolsMatched.WithLabelValues(strategy).Inc()
}

// RecordSkip records one skipped symbol under its reason.
func (r *Registry) RecordSkip(reason string) {
	r.symbolsSkipped.WithLabelValues(reason).Inc()
}

// RecordScanPass records a completed scan pass duration.
func (r *Registry) RecordScanPass(seconds float64) {
	r.scanDuration.Observe(seconds)
}

// RecordRefreshPass records a completed ledger refresh duration.
func (r *Registry) RecordRefreshPass(seconds float64) {
	r.refreshDuration.Observe(seconds)
}

// RecordProviderError records a provider request failure.
func (r *Registry) RecordProviderError(provider string) {
	r.providerErrors.WithLabelValues(provider).Inc()
}

// RecordDigest records a digest delivery attempt.
func (r *Registry) RecordDigest(notifier, status string) {
	r.digestsSent.WithLabelValues(notifier, status).Inc()
}

// SetLedgerSize sets the tracked-instrument gauge.
func (r *Registry) SetLedgerSize(size int) {
	r.ledgerEntries.Set(float64(size))
}

// SetUniverseSize sets the scan-universe gauge.
func (r *Registry) SetUniverseSize(size int) {
	r.universeSize.Set(float64(size))
}
