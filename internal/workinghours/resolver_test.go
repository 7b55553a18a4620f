package workinghours

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	hours map[string]WeeklyHours
	err   error
}

func (f fakeStore) GetWeeklyHours(ctx context.Context, providerID string) (WeeklyHours, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	h, ok := f.hours[providerID]
	return h, ok, nil
}

type fakeRemote struct {
	window DayWindow
	err    error
}

func (f fakeRemote) GetDayWindow(ctx context.Context, providerID string, date time.Time) (DayWindow, error) {
	return f.window, f.err
}

var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func TestWindowForDefaultWeek(t *testing.T) {
	r := NewResolver(nil, fakeStore{})

	w, err := r.WindowFor(context.Background(), "p1", monday)
	if err != nil {
		t.Fatalf("WindowFor failed: %v", err)
	}
	if !w.Working {
		t.Fatal("Monday should be open by default")
	}
	if w.Open.Hour() != 9 || w.Close.Hour() != 17 {
		t.Fatalf("default window %v-%v, want 09:00-17:00", w.Open, w.Close)
	}

	saturday := monday.AddDate(0, 0, 5)
	w, err = r.WindowFor(context.Background(), "p1", saturday)
	if err != nil {
		t.Fatalf("WindowFor failed: %v", err)
	}
	if w.Working {
		t.Fatal("Saturday should be closed by default")
	}
}

func TestWindowForUsesCachedHours(t *testing.T) {
	store := fakeStore{hours: map[string]WeeklyHours{
		"p1": {time.Monday: {10 * 60, 14 * 60}},
	}}
	r := NewResolver(nil, store)

	w, err := r.WindowFor(context.Background(), "p1", monday)
	if err != nil {
		t.Fatalf("WindowFor failed: %v", err)
	}
	if w.Open.Hour() != 10 || w.Close.Hour() != 14 {
		t.Fatalf("cached window not used: %v-%v", w.Open, w.Close)
	}

	// Tuesday missing from the configured week means closed.
	w, err = r.WindowFor(context.Background(), "p1", monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("WindowFor failed: %v", err)
	}
	if w.Working {
		t.Fatal("unconfigured weekday should be closed")
	}
}

func TestWindowForPrefersRemote(t *testing.T) {
	remote := fakeRemote{window: DayWindow{
		Working: true,
		Open:    monday.Add(8 * time.Hour),
		Close:   monday.Add(12 * time.Hour),
	}}
	r := NewResolver(remote, fakeStore{})

	w, err := r.WindowFor(context.Background(), "p1", monday)
	if err != nil {
		t.Fatalf("WindowFor failed: %v", err)
	}
	if w.Open.Hour() != 8 || w.Close.Hour() != 12 {
		t.Fatalf("remote window not used: %v-%v", w.Open, w.Close)
	}
}

func TestWindowForFallsBackWhenRemoteDown(t *testing.T) {
	r := NewResolver(fakeRemote{err: errors.New("unavailable")}, fakeStore{})

	w, err := r.WindowFor(context.Background(), "p1", monday)
	if err != nil {
		t.Fatalf("WindowFor failed: %v", err)
	}
	if !w.Working || w.Open.Hour() != 9 {
		t.Fatalf("expected default-week fallback, got %+v", w)
	}
}

func TestWindowForPropagatesStoreError(t *testing.T) {
	r := NewResolver(nil, fakeStore{err: errors.New("db down")})
	if _, err := r.WindowFor(context.Background(), "p1", monday); err == nil {
		t.Fatal("store error swallowed")
	}
}
