package evaluator

import (
	"testing"

	"github.com/chiufan/tidescan/internal/core"
)

// nshapeSeries builds the flagpole / pullback / quiet-pause shape:
// a long slow base, a 15-bar pole from 60 to 100, a 15% correction to
// 85, a recovery, and a low-volume pause hovering just under the old
// high.
func nshapeSeries() core.PriceSeries {
	s := riseSeries(nil, 200, 40, 60, 1_000_000)   // base
	s = riseSeries(s, 15, 60, 100, 2_000_000)      // flagpole, peak at bar 214
	s = riseSeries(s, 11, 97, 85, 1_500_000)       // correction
	s = riseSeries(s, 11, 86, 97, 1_000_000)       // recovery
	s = flatSeries(s, 1, 97.2, 900_000)
	s = flatSeries(s, 1, 97.5, 900_000)
	s = flatSeries(s, 1, 98, 800_000) // pivot day, volume dried up
	return s
}

func TestNShapePivot_ImplementsEvaluator(t *testing.T) {
	var _ Evaluator = (*NShapePivot)(nil)
}

func TestNShapePivot_InsufficientHistory(t *testing.T) {
	n := NewNShapePivot()
	s := flatSeries(nil, 100, 50, 1_000_000)

	if rec := n.Evaluate(s); rec.Matched {
		t.Error("expected non-match for series shorter than required bars")
	}
}

func TestNShapePivot_Match(t *testing.T) {
	n := NewNShapePivot()
	s := nshapeSeries()

	rec := n.Evaluate(s)
	if !rec.Matched {
		t.Fatal("expected match on flagpole-pullback-pause fixture")
	}
	if rec.Strategy != TagNShape {
		t.Errorf("strategy tag = %q, want %q", rec.Strategy, TagNShape)
	}
	if rec.Values["peak"] != 100 {
		t.Errorf("peak = %v, want 100", rec.Values["peak"])
	}
	if rec.Values["pullback_pct"] < 10 {
		t.Errorf("pullback_pct = %v, want >= 10", rec.Values["pullback_pct"])
	}
}

func TestNShapePivot_RejectsShallowPullback(t *testing.T) {
	n := NewNShapePivot()

	// Same shape but the correction only reaches 97: ~3% off the peak,
	// noise rather than a real pullback.
	s := riseSeries(nil, 200, 40, 60, 1_000_000)
	s = riseSeries(s, 15, 60, 100, 2_000_000)
	s = riseSeries(s, 11, 99, 97, 1_500_000)
	s = riseSeries(s, 11, 97, 98, 1_000_000)
	s = flatSeries(s, 1, 98, 900_000)
	s = flatSeries(s, 1, 98.2, 900_000)
	s = flatSeries(s, 1, 98.5, 800_000)

	if rec := n.Evaluate(s); rec.Matched {
		t.Error("expected non-match on a shallow pullback")
	}
}

func TestNShapePivot_RejectsHeavyVolume(t *testing.T) {
	n := NewNShapePivot()
	s := nshapeSeries()

	// Pivot day on heavy volume: no quiet, no pivot.
	s[len(s)-1].Volume = 1_800_000

	if rec := n.Evaluate(s); rec.Matched {
		t.Error("expected non-match when pivot-day volume is not contracted")
	}
}

func TestNShapePivot_RejectsFarBelowPeak(t *testing.T) {
	n := NewNShapePivot()

	// Recovery stalls at 88: more than 9% below the 100 peak, not
	// hovering near the old high.
	s := riseSeries(nil, 200, 40, 60, 1_000_000)
	s = riseSeries(s, 15, 60, 100, 2_000_000)
	s = riseSeries(s, 11, 97, 85, 1_500_000)
	s = riseSeries(s, 11, 85, 87, 1_000_000)
	s = flatSeries(s, 1, 87.5, 900_000)
	s = flatSeries(s, 1, 87.8, 900_000)
	s = flatSeries(s, 1, 88, 800_000)

	if rec := n.Evaluate(s); rec.Matched {
		t.Error("expected non-match when close sits far below the local peak")
	}
}

func TestNShapePivot_RejectsLowUndercut(t *testing.T) {
	n := NewNShapePivot()
	s := nshapeSeries()

	last := s[len(s)-1]
	last.Low = s[len(s)-2].Low * 0.98
	s[len(s)-1] = last

	if rec := n.Evaluate(s); rec.Matched {
		t.Error("expected non-match when today's low undercuts yesterday's")
	}
}
