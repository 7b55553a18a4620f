// Package availability computes bookable start times for a provider on
// a given day from the working-hours window and the existing blocked
// spans.
package availability

import (
	"time"

	"github.com/slotline/schedcore/internal/timeslot"
)

// DefaultStep is the candidate-start granularity.
const DefaultStep = 15 * time.Minute

// Request describes one availability query. Busy holds the provider's
// existing blocked spans for the day, each already extended by its own
// buffer. Step falls back to DefaultStep when zero.
type Request struct {
	Open     time.Time
	Close    time.Time
	Duration time.Duration
	Buffer   time.Duration
	Busy     []timeslot.Span
	Step     time.Duration
	// Now, when non-zero, drops candidates that have already started.
	Now time.Time
}

// AvailableStarts returns the ascending list of candidate start times
// such that [start, start+duration+buffer) fits inside [Open, Close)
// and intersects no busy span.
func AvailableStarts(req Request) []time.Time {
	step := req.Step
	if step <= 0 {
		step = DefaultStep
	}
	block := req.Duration + req.Buffer
	if block <= 0 || !req.Open.Before(req.Close) {
		return nil
	}

	var out []time.Time
	for start := req.Open; !start.Add(block).After(req.Close); start = start.Add(step) {
		if !req.Now.IsZero() && start.Before(req.Now) {
			continue
		}
		candidate := timeslot.Span{Start: start, End: start.Add(block)}
		if conflicts(candidate, req.Busy) {
			continue
		}
		out = append(out, start)
	}
	return out
}

func conflicts(candidate timeslot.Span, busy []timeslot.Span) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
