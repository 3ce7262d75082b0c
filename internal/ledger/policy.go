package ledger

import (
	"time"

	"github.com/chiufan/tidescan/internal/core"
	"github.com/chiufan/tidescan/internal/marketclock"
)

// Policy decides whether a run's fresh matches get committed to the
// ledger or stay in the ephemeral today document. Intraday runs
// withhold commits so volatile session prices never become permanent
// entry prices; the refresh of already-tracked entries is not gated
// here and runs on every invocation.
type Policy struct {
	clock marketclock.Clock
}

// NewPolicy creates an archival policy on the given market clock.
func NewPolicy(clock marketclock.Clock) *Policy {
	return &Policy{clock: clock}
}

// ShouldCommit reports whether matches found at now may enter the
// ledger.
func (p *Policy) ShouldCommit(now time.Time) bool {
	return !p.clock.IsSessionOpen(now)
}

// FileDateKey returns the ledger partition key a commit at now files
// under.
func (p *Policy) FileDateKey(now time.Time) string {
	return p.clock.SessionDate(now).Format(core.DateKeyLayout)
}
