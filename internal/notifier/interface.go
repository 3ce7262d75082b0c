package notifier

import (
	"github.com/chiufan/tidescan/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier defines the interface for match-digest delivery
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// SendDigest delivers one scan run's matches. An empty list is a
	// no-op, not an error.
	SendDigest(doc core.TodayDocument) error
}
