package payout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DURATION RESOLVER
// =============================================================================

var secondsPerHour = decimal.NewFromInt(3600)

// clockLayouts are tried in order when parsing a clock value.
var clockLayouts = []string{"15:04", "15:04:05"}

// ResolveHours turns a time entry into hours worked.
//
// A positive manual total always wins. Otherwise the distance between
// start and stop is used, measured on one fixed day and floored at zero,
// so a stop before start yields 0. Pause and resume are not subtracted.
func ResolveHours(te TimeEntry) decimal.Decimal {
	if te.ManualTotalHours.IsPositive() {
		return te.ManualTotalHours
	}

	start, okStart := ParseClock(te.Start)
	stop, okStop := ParseClock(te.Stop)
	if !okStart || !okStop {
		return decimal.Zero
	}

	seconds := int64(stop.Sub(start) / time.Second)
	if seconds <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(seconds).Div(secondsPerHour)
}

// endOfDay is accepted as a clock value and sorts after every other time of
// the same day.
var endOfDay = map[string]bool{"24:00": true, "24:00:00": true}

// ParseClock parses "HH:MM" or "HH:MM:SS". The date component of the result
// is the zero date for every input, which makes two results comparable.
// "24:00" is midnight at the end of that day.
func ParseClock(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if endOfDay[s] {
		t, _ := time.Parse(clockLayouts[0], "00:00")
		return t.Add(24 * time.Hour), true
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
