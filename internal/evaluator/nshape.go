package evaluator

import (
	"math"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/indicator"
)

// TagNShape is the strategy tag carried in match notes.
const TagNShape = "N-shape"

// N-shape pivot thresholds: a prior flagpole, a real correction, and a
// quiet low-volume pause hovering just under the old high.
const (
	nshapeRequiredBars = 240

	// Local peak search window, excluding the most recent bars.
	peakWindow      = 30
	peakExcludeTail = 3

	// The peak-to-pullback drop that separates a correction from noise.
	minPullbackDepth = 0.10

	// The local peak must sit near the series-wide high.
	minOfAllTimeHigh = 0.95

	// Hover band around the local peak for today's close.
	hoverLowerBound = 0.91
	hoverUpperBound = 1.02

	// Pivot-day quiet: volume versus the recent maximum, close versus
	// its 5-bar average, and the prior low held within tolerance.
	maxVolOfRecentMax = 0.5
	maxBias5          = 0.025
	nshapeLowUndercut = 0.005
)

// NShapePivot matches a flagpole run-up, a meaningful pullback, and a
// low-volume pause near the prior high poised to re-attempt a breakout.
type NShapePivot struct{}

// NewNShapePivot creates the evaluator.
func NewNShapePivot() *NShapePivot {
	return &NShapePivot{}
}

func (n *NShapePivot) Name() string {
	return "nshape_pivot"
}

func (n *NShapePivot) Description() string {
	return "Flagpole, pullback, low-volume pause near the prior high"
}

func (n *NShapePivot) RequiredBars() int {
	return nshapeRequiredBars
}

func (n *NShapePivot) Init(cfg Config) error {
	return nil
}

func (n *NShapePivot) Evaluate(s core.PriceSeries) core.MatchRecord {
	if len(s) < n.RequiredBars() {
		return core.MatchRecord{}
	}

	closes := s.Closes()
	vols := s.Volumes()
	today := s.Last()
	prev := s[len(s)-2]

	ma5, _ := indicator.LastMA(closes, 5)
	ma10, _ := indicator.LastMA(closes, 10)
	ma60, _ := indicator.LastMA(closes, 60)
	ma120, _ := indicator.LastMA(closes, 120)
	ma240, _ := indicator.LastMA(closes, 240)

	// Absolute gate: above the annual average, medium trend intact.
	if today.Close <= ma240 || ma60 <= ma120 {
		return core.MatchRecord{}
	}

	// Locate the local peak in the trailing window, excluding the most
	// recent few bars, then the pullback low after it.
	peakStart := len(s) - peakWindow
	peakEnd := len(s) - peakExcludeTail
	peakIdx := peakStart
	for i := peakStart + 1; i < peakEnd; i++ {
		if closes[i] > closes[peakIdx] {
			peakIdx = i
		}
	}
	peak := closes[peakIdx]

	low := closes[peakIdx]
	for i := peakIdx + 1; i < len(s)-1; i++ {
		if closes[i] < low {
			low = closes[i]
		}
	}

	// A real correction, not noise.
	if peak == 0 || (peak-low)/peak < minPullbackDepth {
		return core.MatchRecord{}
	}

	// The peak itself must be near the series-wide high, filtering out
	// mid-range noise peaks.
	allHigh, _ := indicator.LastMax(closes, len(closes))
	if peak < allHigh*minOfAllTimeHigh {
		return core.MatchRecord{}
	}

	// Hovering near the old high.
	if today.Close < peak*hoverLowerBound || today.Close > peak*hoverUpperBound {
		return core.MatchRecord{}
	}

	// Short-term strength resumed.
	if today.Close <= ma5 || today.Close <= ma10 {
		return core.MatchRecord{}
	}

	// Quiet before the move: extreme volume contraction against the
	// recent maximum and price glued to its 5-bar average.
	recentMaxVol, ok := indicator.LastMaxAt(vols, peakWindow, 1)
	if !ok || float64(today.Volume) > recentMaxVol*maxVolOfRecentMax {
		return core.MatchRecord{}
	}
	if ma5 == 0 || math.Abs(today.Close-ma5)/ma5 > maxBias5 {
		return core.MatchRecord{}
	}

	// Yesterday's low held, within a small tolerance.
	if prev.Low > 0 && today.Low < prev.Low*(1-nshapeLowUndercut) {
		return core.MatchRecord{}
	}

	return core.MatchRecord{
		Matched:  true,
		Strategy: TagNShape,
		Price:    round2(today.Close),
		Values: map[string]float64{
			"price":        round2(today.Close),
			"ma5":          round2(ma5),
			"ma10":         round2(ma10),
			"ma240":        round2(ma240),
			"changeRate":   round2(s.ChangeRate()),
			"peak":         round2(peak),
			"pullback_pct": round2((peak - low) / peak * 100),
		},
	}
}
