package scheduling

import (
	"context"
	"time"

	"github.com/slotline/schedcore/internal/availability"
	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/internal/timeslot"
	"github.com/slotline/schedcore/internal/workinghours"
)

// HoursResolver supplies a provider's open/close window for a date.
type HoursResolver interface {
	WindowFor(ctx context.Context, providerID string, date time.Time) (workinghours.DayWindow, error)
}

// Slots returns the bookable start times for a provider, service and
// date. Past starts on the current day are dropped.
func (s *Service) Slots(ctx context.Context, providerID, serviceID string, date time.Time) ([]time.Time, error) {
	svc, err := s.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, &schederr.NotFoundError{Entity: "service", ID: serviceID}
	}
	if svc.ProviderID != providerID {
		return nil, &schederr.NotFoundError{Entity: "service", ID: serviceID}
	}
	if ok, err := s.store.ProviderExists(ctx, providerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, &schederr.NotFoundError{Entity: "provider", ID: providerID}
	}

	if s.hours == nil {
		return nil, &schederr.NotFoundError{Entity: "working hours for provider", ID: providerID}
	}
	window, err := s.hours.WindowFor(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if !window.Working {
		return nil, nil
	}

	spans, err := s.store.ListBlockedSpans(ctx, providerID, window.Open, window.Close)
	if err != nil {
		return nil, err
	}
	busy := make([]timeslot.Span, 0, len(spans))
	for _, sp := range spans {
		busy = append(busy, timeslot.Span{Start: sp.Start, End: sp.BlockedUntil})
	}

	return availability.AvailableStarts(availability.Request{
		Open:     window.Open,
		Close:    window.Close,
		Duration: svc.Duration(),
		Buffer:   svc.Buffer(),
		Busy:     busy,
		Now:      s.now().UTC(),
	}), nil
}
