// Package timeslot implements the half-open interval arithmetic the
// scheduling engine is built on. An appointment occupies [Start, End)
// and keeps its provider busy through [Start, End+buffer).
package timeslot

import "time"

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// New returns the span [start, start+d).
func New(start time.Time, d time.Duration) Span {
	return Span{Start: start, End: start.Add(d)}
}

// Effective extends the span by the trailing buffer. A buffer of zero
// returns the span unchanged.
func (s Span) Effective(buffer time.Duration) Span {
	if buffer <= 0 {
		return s
	}
	return Span{Start: s.Start, End: s.End.Add(buffer)}
}

// Overlaps reports whether the two half-open intervals intersect.
// Back-to-back spans (s.End == o.Start) do not overlap.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Contains reports whether t falls inside the half-open interval.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Duration returns End minus Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
