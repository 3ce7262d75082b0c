package evaluator

import (
	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/indicator"
)

// TagPullback is the strategy tag carried in match notes.
const TagPullback = "Pullback Setup"

// Pullback thresholds. The moving-average stacking contract is
// MA10 > MA60 > MA120 > MA240; earlier, looser orderings
// (MA10 > MA20 > MA60) are superseded.
const (
	pullbackRequiredBars = 300

	// Reject instruments already extended too far above the basis MA.
	maxBias60 = 0.25

	// Spread of the 5/10/20-bar averages relative to the smallest,
	// below which they count as converged.
	maxShortMASpread = 0.08

	// Liquidity floor on the 5-bar average volume, in shares.
	defaultMinAvgVolume = 1_000_000
)

// PullbackSetup matches instruments in an established uptrend
// consolidating near short-term support on shrinking volume.
type PullbackSetup struct {
	minAvgVolume float64
}

// NewPullbackSetup creates the evaluator with the default liquidity floor.
func NewPullbackSetup() *PullbackSetup {
	return &PullbackSetup{minAvgVolume: defaultMinAvgVolume}
}

func (p *PullbackSetup) Name() string {
	return "pullback_setup"
}

func (p *PullbackSetup) Description() string {
	return "Uptrend pullback onto short moving-average support with volume contraction"
}

func (p *PullbackSetup) RequiredBars() int {
	return pullbackRequiredBars
}

func (p *PullbackSetup) Init(cfg Config) error {
	if v, ok := cfg.Params["min_avg_volume"].(int); ok {
		p.minAvgVolume = float64(v)
	}
	if v, ok := cfg.Params["min_avg_volume"].(float64); ok {
		p.minAvgVolume = v
	}
	return nil
}

func (p *PullbackSetup) Evaluate(s core.PriceSeries) core.MatchRecord {
	if len(s) < p.RequiredBars() {
		return core.MatchRecord{}
	}

	closes := s.Closes()
	vols := s.Volumes()
	today := s.Last()

	ma5, _ := indicator.LastMA(closes, 5)
	ma10, _ := indicator.LastMA(closes, 10)
	ma20, _ := indicator.LastMA(closes, 20)
	ma60, _ := indicator.LastMA(closes, 60)
	ma120, _ := indicator.LastMA(closes, 120)
	ma240, _ := indicator.LastMA(closes, 240)
	ma300, _ := indicator.LastMA(closes, 300)
	volMA5, _ := indicator.LastMA(vols, 5)

	// Long-term filter: close above the 300/120/60-bar averages.
	if today.Close <= ma300 || today.Close <= ma120 || today.Close <= ma60 {
		return core.MatchRecord{}
	}

	// Trend ordering.
	if !(ma10 > ma60 && ma60 > ma120 && ma120 > ma240) {
		return core.MatchRecord{}
	}

	// Extension control.
	if ma60 == 0 || (today.Close-ma60)/ma60 >= maxBias60 {
		return core.MatchRecord{}
	}

	// Convergence of the short averages.
	minShort := min3(ma5, ma10, ma20)
	maxShort := max3(ma5, ma10, ma20)
	if minShort == 0 || (maxShort-minShort)/minShort >= maxShortMASpread {
		return core.MatchRecord{}
	}

	// Volume contraction and liquidity floor.
	if float64(today.Volume) >= volMA5 || volMA5 < p.minAvgVolume {
		return core.MatchRecord{}
	}

	// Support confirmation on the 10-bar average.
	if today.Close <= ma10 {
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
		Strategy: TagPullback,
		Price:    round2(today.Close),
		Values: map[string]float64{
			"price":      round2(today.Close),
			"ma5":        round2(ma5),
			"ma10":       round2(ma10),
			"ma240":      round2(ma240),
			"changeRate": round2(s.ChangeRate()),
			"vol_ratio":  round2(volRatio),
		},
	}
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
