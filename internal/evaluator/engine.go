package evaluator

import (
	"strings"
	"sync"

	"github.com/chiufan/tidescan/internal/core"
	"go.uber.org/zap"
)

// Engine manages and runs evaluators against single-instrument series.
type Engine struct {
	mu         sync.RWMutex
	order      []string
	evaluators map[string]Evaluator
	logger     *zap.Logger
}

// NewEngine creates a new evaluator engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		evaluators: make(map[string]Evaluator),
		logger:     l,
	}
}

// Register adds an evaluator to the engine. Registration order is the
// evaluation order, which decides whose snapshot a multi-strategy
// match keeps.
func (e *Engine) Register(ev Evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.evaluators[ev.Name()]; !exists {
		e.order = append(e.order, ev.Name())
	}
	e.evaluators[ev.Name()] = ev
}

// Get retrieves an evaluator by name
func (e *Engine) Get(name string) (Evaluator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ev, ok := e.evaluators[name]
	return ev, ok
}

// GetAll returns all registered evaluators in registration order.
func (e *Engine) GetAll() []Evaluator {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Evaluator, 0, len(e.order))
	for _, name := range e.order {
		result = append(result, e.evaluators[name])
	}
	return result
}

// Evaluate runs every evaluator over the series and merges the matches
// into one record: all matching tags concatenated, the first non-empty
// snapshot kept as the representative values. ok is false when nothing
// matched.
func (e *Engine) Evaluate(symbol string, s core.PriceSeries) (core.MatchRecord, bool) {
	var merged core.MatchRecord
	var tags []string

	for _, ev := range e.GetAll() {
		rec := ev.Evaluate(s)
		if !rec.Matched {
			continue
		}
		e.logger.Debug("evaluator matched",
			zap.String("symbol", symbol),
			zap.String("evaluator", ev.Name()),
			zap.String("tag", rec.Strategy),
		)
		tags = append(tags, rec.Strategy)
		if merged.Values == nil {
			merged = rec
		}
	}

	if len(tags) == 0 {
		return core.MatchRecord{}, false
	}

	merged.Strategy = strings.Join(tags, " + ")
	return merged, true
}
