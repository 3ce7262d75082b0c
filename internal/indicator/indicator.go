// Package indicator provides rolling calculations over daily close and
// volume columns. Series functions return one value per fully-covered
// window (length len(values)-period+1); Last* helpers return the most
// recent window's value and report availability explicitly, so "not
// enough history" never shows up as a fake zero in strategy math.
package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(values) - period + 1
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(values)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(values); i++ {
		sum = sum - values[i-period] + values[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// LastMA returns the mean of the last period values.
func LastMA(values []float64, period int) (float64, bool) {
	return LastMAAt(values, period, 0)
}

// LastMAAt returns the mean of the period values ending offset bars
// before the latest bar. offset 0 is the latest bar itself.
func LastMAAt(values []float64, period, offset int) (float64, bool) {
	if period <= 0 || offset < 0 || len(values) < period+offset {
		return 0, false
	}
	start := len(values) - period - offset
	var sum float64
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	return sum / float64(period), true
}

// LastStdDev returns the population standard deviation of the last
// period values.
func LastStdDev(values []float64, period int) (float64, bool) {
	mean, ok := LastMA(values, period)
	if !ok {
		return 0, false
	}
	start := len(values) - period
	var sq float64
	for i := start; i < len(values); i++ {
		d := values[i] - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(period)), true
}

// BandWidth returns the volatility-band width over the last period
// bars: ((MA+2σ) − (MA−2σ)) / MA, i.e. 4σ/MA. A flat series has band
// width 0.
func BandWidth(values []float64, period int) (float64, bool) {
	mean, ok := LastMA(values, period)
	if !ok || mean == 0 {
		return 0, false
	}
	sd, _ := LastStdDev(values, period)
	return 4 * sd / mean, true
}

// LastMax returns the maximum of the last period values.
func LastMax(values []float64, period int) (float64, bool) {
	return LastMaxAt(values, period, 0)
}

// LastMaxAt returns the maximum of the period values ending offset bars
// before the latest bar.
func LastMaxAt(values []float64, period, offset int) (float64, bool) {
	if period <= 0 || offset < 0 || len(values) < period+offset {
		return 0, false
	}
	start := len(values) - period - offset
	max := values[start]
	for i := start + 1; i < start+period; i++ {
		if values[i] > max {
			max = values[i]
		}
	}
	return max, true
}

// LastMin returns the minimum of the last period values.
func LastMin(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	start := len(values) - period
	min := values[start]
	for i := start + 1; i < len(values); i++ {
		if values[i] < min {
			min = values[i]
		}
	}
	return min, true
}

// RetraceDepth returns the drawdown-from-peak ratio over the last
// period values: (max − min) / max. Zero for a flat series.
func RetraceDepth(values []float64, period int) (float64, bool) {
	max, ok := LastMax(values, period)
	if !ok || max == 0 {
		return 0, false
	}
	min, _ := LastMin(values, period)
	return (max - min) / max, true
}
