package evaluator

import (
	"time"

	"github.com/chiufan/tidescan/internal/core"
)

var testBase = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

// flatBar builds a doji bar: open = high = low = close.
func flatBar(i int, close float64, volume int64) core.Bar {
	return core.Bar{
		Date:   testBase.AddDate(0, 0, i),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: volume,
	}
}

// riseSeries appends n bars rising linearly from first to last close.
func riseSeries(s core.PriceSeries, n int, from, to float64, volume int64) core.PriceSeries {
	for i := 0; i < n; i++ {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		s = append(s, flatBar(len(s), from+(to-from)*frac, volume))
	}
	return s
}

// flatSeries appends n flat bars.
func flatSeries(s core.PriceSeries, n int, close float64, volume int64) core.PriceSeries {
	for i := 0; i < n; i++ {
		s = append(s, flatBar(len(s), close, volume))
	}
	return s
}

// vcpSeries is the canonical contraction fixture: 300 bars rising from
// 50 to 110, then 10 flat bars at 110 with volume collapsing from
// 2,000,000 to 400,000 shares.
func vcpSeries() core.PriceSeries {
	s := riseSeries(nil, 300, 50, 110, 2_000_000)
	return flatSeries(s, 10, 110, 400_000)
}

// pullbackSeries is an uptrend consolidating just above its 10-bar
// average on shrinking volume: 300 bars rising from 50 to 100, nine
// flat bars at 100, and a narrow up-close last bar.
func pullbackSeries() core.PriceSeries {
	s := riseSeries(nil, 300, 50, 100, 2_000_000)
	s = flatSeries(s, 9, 100, 2_000_000)
	s = append(s, core.Bar{
		Date:   testBase.AddDate(0, 0, len(s)),
		Open:   100.3,
		High:   100.55,
		Low:    100.25,
		Close:  100.5,
		Volume: 1_500_000,
	})
	return s
}
