// Package workinghours resolves a provider's open/close window for a
// date. Hours live in an external schedule-configuration service; the
// resolver consults it over gRPC when available, then the locally
// cached weekly hours kept fresh by the Kafka hours consumer, then a
// default week.
package workinghours

import (
	"context"
	"time"
)

// WeeklyHours maps a weekday to open/close offsets in minutes from
// midnight. A missing weekday means closed.
type WeeklyHours map[time.Weekday][2]int

// Store is the locally cached weekly hours per provider.
type Store interface {
	GetWeeklyHours(ctx context.Context, providerID string) (WeeklyHours, bool, error)
}

// DefaultWeek is used for providers with no configured hours yet:
// Monday through Friday, 09:00 to 17:00.
func DefaultWeek() WeeklyHours {
	w := make(WeeklyHours, 5)
	for d := time.Monday; d <= time.Friday; d++ {
		w[d] = [2]int{9 * 60, 17 * 60}
	}
	return w
}

type Resolver struct {
	remote Remote
	store  Store
}

// NewResolver builds a resolver. remote and store may each be nil.
func NewResolver(remote Remote, store Store) *Resolver {
	return &Resolver{remote: remote, store: store}
}

// WindowFor returns the provider's window for the date. Working is
// false on a closed day. The date's clock component is ignored; the
// returned times carry the date's location.
func (r *Resolver) WindowFor(ctx context.Context, providerID string, date time.Time) (DayWindow, error) {
	if r.remote != nil {
		w, err := r.remote.GetDayWindow(ctx, providerID, date)
		if err == nil {
			return w, nil
		}
		// Remote down: fall through to the local cache.
	}

	week := DefaultWeek()
	if r.store != nil {
		cached, ok, err := r.store.GetWeeklyHours(ctx, providerID)
		if err != nil {
			return DayWindow{}, err
		}
		if ok {
			week = cached
		}
	}

	span, ok := week[date.Weekday()]
	if !ok {
		return DayWindow{}, nil
	}
	y, m, d := date.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	return DayWindow{
		Working: true,
		Open:    midnight.Add(time.Duration(span[0]) * time.Minute),
		Close:   midnight.Add(time.Duration(span[1]) * time.Minute),
	}, nil
}
