package evaluator

import (
	"github.com/chiufan/tidescan/internal/core"
)

// Config holds evaluator configuration
type Config struct {
	Enabled bool
	Params  map[string]any
}

// Evaluator is a pure predicate over one instrument's own history.
// Evaluate never fails: a series shorter than RequiredBars is a
// definitive non-match, and evaluators share no mutable state.
type Evaluator interface {
	Name() string
	Description() string
	RequiredBars() int
	Init(cfg Config) error
	Evaluate(s core.PriceSeries) core.MatchRecord
}

// round2 rounds display values the way the published documents carry
// them, to two decimals.
func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
