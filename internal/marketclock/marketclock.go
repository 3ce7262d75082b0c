// Package marketclock decides what counts as "during the session" and
// which trading date a run files under. Injected so both branches of
// the archival policy are testable without waiting for 13:30.
package marketclock

import "time"

// Clock answers session questions for a market.
type Clock interface {
	// IsSessionOpen reports whether t falls inside trading hours.
	IsSessionOpen(t time.Time) bool

	// SessionDate returns the trading date a run at t belongs to: the
	// most recent trading day whose own close has already passed.
	SessionDate(t time.Time) time.Time
}

// TST is Taiwan Standard Time (UTC+8, no DST).
var TST = time.FixedZone("TST", 8*3600)

// TWSE trading hours in TST
const (
	openHour    = 9
	openMinute  = 0
	closeHour   = 13
	closeMinute = 30
)

// Taiwan implements Clock for the TWSE/TPEX session
// (9:00 AM – 1:30 PM TST, Mon–Fri).
type Taiwan struct{}

// NewTaiwan creates the Taiwan market clock.
func NewTaiwan() *Taiwan {
	return &Taiwan{}
}

// IsSessionOpen returns true if t falls within TWSE trading hours.
func (c *Taiwan) IsSessionOpen(t time.Time) bool {
	tst := t.In(TST)
	if !isWeekday(tst) {
		return false
	}
	hm := tst.Hour()*60 + tst.Minute()
	return hm >= openHour*60+openMinute && hm < closeHour*60+closeMinute
}

// SessionDate returns the trading date whose close most recently
// passed. A run before today's 1:30 PM close, or on a weekend, files
// under the previous trading day.
func (c *Taiwan) SessionDate(t time.Time) time.Time {
	tst := t.In(TST)

	if isWeekday(tst) {
		hm := tst.Hour()*60 + tst.Minute()
		if hm >= closeHour*60+closeMinute {
			return midnight(tst)
		}
	}

	d := tst.AddDate(0, 0, -1)
	for !isWeekday(d) {
		d = d.AddDate(0, 0, -1)
	}
	return midnight(d)
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, TST)
}
