// Package conflict decides whether a candidate booking window collides
// with a provider's existing non-canceled appointments.
//
// The detector is check-only: callers must hold the provider's lock
// across the check and the commit, otherwise two racing bookings can
// both pass and both write.
package conflict

import (
	"context"
	"time"

	"github.com/slotline/schedcore/internal/timeslot"
)

// Span is an existing blocked interval, already extended by its buffer.
type Span struct {
	AppointmentID string
	Start         time.Time
	BlockedUntil  time.Time
}

// Source lists a provider's blocked spans intersecting [from, to).
// Canceled appointments are never returned.
type Source interface {
	ListBlockedSpans(ctx context.Context, providerID string, from, to time.Time) ([]Span, error)
}

// Detector answers overlap queries against a Source.
type Detector struct {
	src Source
}

func NewDetector(src Source) *Detector {
	return &Detector{src: src}
}

// HasConflict reports whether [start, blockedUntil) overlaps any of the
// provider's blocked spans. excludeID skips one appointment, used when
// rescheduling so an appointment does not conflict with itself.
func (d *Detector) HasConflict(ctx context.Context, providerID string, start, blockedUntil time.Time, excludeID string) (bool, error) {
	spans, err := d.src.ListBlockedSpans(ctx, providerID, start, blockedUntil)
	if err != nil {
		return false, err
	}
	candidate := timeslot.Span{Start: start, End: blockedUntil}
	for _, s := range spans {
		if excludeID != "" && s.AppointmentID == excludeID {
			continue
		}
		if candidate.Overlaps(timeslot.Span{Start: s.Start, End: s.BlockedUntil}) {
			return true, nil
		}
	}
	return false, nil
}
