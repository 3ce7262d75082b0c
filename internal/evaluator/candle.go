package evaluator

import (
	"math"

	"github.com/chiufan/tidescan/internal/core"
)

// Candle-quality exclusions shared by the pullback and VCP setups.
// All are hard rejections, not scored.
const (
	// Shooting-star shape: a long upper wick with almost no lower wick.
	shootingStarUpperWick = 0.002
	shootingStarLowerWick = 0.001

	// Today's low undercutting yesterday's low by more than this
	// fraction breaks the support story.
	maxLowUndercut = 0.015

	// Daily range and candle body, as a fraction of yesterday's close.
	maxDailyRange = 0.045
	maxCandleBody = 0.025

	// Deduction check: today's close must not be below the close from
	// this many bars prior, or the trend is no longer continuing.
	deductionLookback = 20
)

// passesCandleQuality applies the shared exclusions to the latest bar.
// Requires at least deductionLookback+1 bars; shorter series fail.
func passesCandleQuality(s core.PriceSeries) bool {
	if len(s) < deductionLookback+1 {
		return false
	}

	today := s.Last()
	prev := s[len(s)-2]

	body := math.Abs(today.Close - today.Open)
	upperWick := today.High - math.Max(today.Open, today.Close)
	lowerWick := math.Min(today.Open, today.Close) - today.Low

	if today.Close > 0 &&
		upperWick > today.Close*shootingStarUpperWick &&
		lowerWick < today.Close*shootingStarLowerWick {
		return false
	}

	if prev.Low > 0 && today.Low < prev.Low*(1-maxLowUndercut) {
		return false
	}

	if prev.Close > 0 {
		if (today.High-today.Low)/prev.Close > maxDailyRange {
			return false
		}
		if body/prev.Close > maxCandleBody {
			return false
		}
	}

	if today.Close < s[len(s)-1-deductionLookback].Close {
		return false
	}

	return true
}
