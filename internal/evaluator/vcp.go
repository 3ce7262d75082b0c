package evaluator

import (
	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/indicator"
)

// TagStrictVCP is the strategy tag carried in match notes.
const TagStrictVCP = "Strict-VCP"

// Strict-VCP thresholds. The band width uses the 4σ/MA form over a
// 20-bar window; a trailing 240-bar window stands in for the 52-week
// high/low (Taiwan trades roughly 240 sessions a year).
const (
	vcpRequiredBars = 300

	vcpBandWindow     = 20
	defaultBandMax    = 0.15
	yearWindow        = 240
	minAboveYearLow   = 1.3
	minOfYearHigh     = 0.75
	ma200RiseLookback = 20
)

// StrictVCP matches a multi-month volatility contraction near a
// breakout point: stacked long averages, price holding its yearly
// range, band width compressed, volume decaying, and successively
// shallower retracements.
type StrictVCP struct {
	minAvgVolume float64
	bandMax      float64
}

// NewStrictVCP creates the evaluator with default thresholds.
func NewStrictVCP() *StrictVCP {
	return &StrictVCP{
		minAvgVolume: defaultMinAvgVolume,
		bandMax:      defaultBandMax,
	}
}

func (v *StrictVCP) Name() string {
	return "strict_vcp"
}

func (v *StrictVCP) Description() string {
	return "Volatility-contraction pattern with decaying volume and retracements"
}

func (v *StrictVCP) RequiredBars() int {
	return vcpRequiredBars
}

func (v *StrictVCP) Init(cfg Config) error {
	if x, ok := cfg.Params["min_avg_volume"].(int); ok {
		v.minAvgVolume = float64(x)
	}
	if x, ok := cfg.Params["min_avg_volume"].(float64); ok {
		v.minAvgVolume = x
	}
	if x, ok := cfg.Params["band_width_max"].(float64); ok {
		v.bandMax = x
	}
	return nil
}

func (v *StrictVCP) Evaluate(s core.PriceSeries) core.MatchRecord {
	if len(s) < v.RequiredBars() {
		return core.MatchRecord{}
	}

	closes := s.Closes()
	vols := s.Volumes()
	today := s.Last()

	ma60, _ := indicator.LastMA(closes, 60)
	ma120, _ := indicator.LastMA(closes, 120)
	ma150, _ := indicator.LastMA(closes, 150)
	ma200, _ := indicator.LastMA(closes, 200)
	ma240, _ := indicator.LastMA(closes, 240)
	ma200Back, _ := indicator.LastMAAt(closes, 200, ma200RiseLookback)

	// Long stacking and trend confirmation: price above the whole
	// stack and the 200-bar average still rising, not merely high.
	if today.Close <= ma60 || today.Close <= ma120 || today.Close <= ma240 {
		return core.MatchRecord{}
	}
	if !(ma60 > ma120 && ma120 > ma240) {
		return core.MatchRecord{}
	}
	if today.Close <= ma200 || today.Close <= ma150 || ma200 <= ma200Back {
		return core.MatchRecord{}
	}

	// Price level inside the yearly range: clear of the low, close
	// enough to the high.
	yearLow, _ := indicator.LastMin(closes, yearWindow)
	yearHigh, _ := indicator.LastMax(closes, yearWindow)
	if today.Close <= yearLow*minAboveYearLow || today.Close <= yearHigh*minOfYearHigh {
		return core.MatchRecord{}
	}

	// Volatility contraction.
	band, ok := indicator.BandWidth(closes, vcpBandWindow)
	if !ok || band >= v.bandMax {
		return core.MatchRecord{}
	}

	// Volume decay plus absolute floor.
	volMA5, _ := indicator.LastMA(vols, 5)
	volMA20, _ := indicator.LastMA(vols, 20)
	if volMA5 >= volMA20 || volMA5 < v.minAvgVolume {
		return core.MatchRecord{}
	}

	// Retracement decay: drawdowns over shrinking windows must be
	// strictly decreasing.
	r60, _ := indicator.RetraceDepth(closes, 60)
	r20, _ := indicator.RetraceDepth(closes, 20)
	r10, _ := indicator.RetraceDepth(closes, 10)
	if !(r60 > r20 && r20 > r10) {
		return core.MatchRecord{}
	}

	if !passesCandleQuality(s) {
		return core.MatchRecord{}
	}

	volRatio := 0.0
	if volMA5 > 0 {
		volRatio = float64(today.Volume) / volMA5
	}

	return core.MatchRecord{
		Matched:  true,
		Strategy: TagStrictVCP,
		Price:    round2(today.Close),
		Values: map[string]float64{
			"price":          round2(today.Close),
			"ma5":            round2(mustLastMA(closes, 5)),
			"ma10":           round2(mustLastMA(closes, 10)),
			"ma240":          round2(ma240),
			"changeRate":     round2(s.ChangeRate()),
			"vol_ratio":      round2(volRatio),
			"band_width_pct": round2(band * 100),
		},
	}
}

// mustLastMA is for windows already guaranteed by RequiredBars.
func mustLastMA(values []float64, period int) float64 {
	ma, _ := indicator.LastMA(values, period)
	return ma
}
