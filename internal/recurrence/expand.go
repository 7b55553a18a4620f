// Package recurrence expands a recurrence rule into a finite, ordered
// list of candidate occurrences. Expansion is eager: the engine never
// books an open-ended series, so indefinite rules are capped.
package recurrence

import (
	"time"

	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/internal/timeslot"
)

// Frequency is the calendar step between occurrences.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// MaxOccurrences caps indefinite recurrences. Unbounded series creation
// is unsafe, so "indefinite" means "the next year".
const MaxOccurrences = 52

// EndAfterIndefinite asks for the capped maximum number of occurrences.
const EndAfterIndefinite = 0

// Rule describes a recurrence: repeat every Frequency step, EndAfter
// times in total (including the anchor occurrence), or indefinitely.
type Rule struct {
	Frequency Frequency
	EndAfter  int
}

// Expand returns the ordered occurrence spans for the rule anchored at
// start, each of the given duration. EndAfter < 0 and unknown
// frequencies fail with InvalidRecurrenceError; EndAfter above the cap
// is truncated to MaxOccurrences.
func Expand(start time.Time, duration time.Duration, rule Rule) ([]timeslot.Span, error) {
	switch rule.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return nil, &schederr.InvalidRecurrenceError{Field: "frequency", Reason: `must be one of "daily", "weekly", "monthly"`}
	}
	n := rule.EndAfter
	if n < 0 {
		return nil, &schederr.InvalidRecurrenceError{Field: "end_after", Reason: "must be positive"}
	}
	if n == EndAfterIndefinite || n > MaxOccurrences {
		n = MaxOccurrences
	}

	spans := make([]timeslot.Span, 0, n)
	cur := start
	for i := 0; i < n; i++ {
		spans = append(spans, timeslot.New(cur, duration))
		switch rule.Frequency {
		case Daily:
			cur = cur.AddDate(0, 0, 1)
		case Weekly:
			cur = cur.AddDate(0, 0, 7)
		case Monthly:
			cur = addOneMonthClamped(cur)
		}
	}
	return spans, nil
}

// addOneMonthClamped advances t by one calendar month, clamping the day
// of month to the last valid day when the target month is shorter. An
// anchor on Jan 31 yields Feb 28 (or 29), then Mar 28: once clamped,
// the series stays on the clamped day rather than springing back.
func addOneMonthClamped(t time.Time) time.Time {
	y, m, d := t.Date()
	firstOfNext := time.Date(y, m+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(firstOfNext.Year(), firstOfNext.Month()); d > last {
		d = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
