package conflict

import (
	"context"
	"errors"
	"testing"
	"time"
)

type staticSource struct {
	spans []Span
	err   error
}

func (s staticSource) ListBlockedSpans(ctx context.Context, providerID string, from, to time.Time) ([]Span, error) {
	return s.spans, s.err
}

func at(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func TestHasConflict(t *testing.T) {
	d := NewDetector(staticSource{spans: []Span{
		{AppointmentID: "a1", Start: at(10, 0), BlockedUntil: at(10, 40)},
	}})
	ctx := context.Background()

	got, err := d.HasConflict(ctx, "p1", at(10, 30), at(11, 0), "")
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if !got {
		t.Fatal("overlap with a blocked span not detected")
	}

	// Starting exactly at the blocked end is allowed.
	got, err = d.HasConflict(ctx, "p1", at(10, 40), at(11, 10), "")
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if got {
		t.Fatal("back-to-back booking reported as conflict")
	}
}

func TestHasConflictExcludesSelf(t *testing.T) {
	d := NewDetector(staticSource{spans: []Span{
		{AppointmentID: "a1", Start: at(10, 0), BlockedUntil: at(10, 40)},
		{AppointmentID: "a2", Start: at(11, 0), BlockedUntil: at(11, 40)},
	}})
	ctx := context.Background()

	// Rescheduling a1 within its own window is fine.
	got, err := d.HasConflict(ctx, "p1", at(10, 15), at(10, 55), "a1")
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if got {
		t.Fatal("appointment conflicted with itself during reschedule")
	}

	// But not onto a2's window.
	got, err = d.HasConflict(ctx, "p1", at(11, 15), at(11, 55), "a1")
	if err != nil {
		t.Fatalf("HasConflict failed: %v", err)
	}
	if !got {
		t.Fatal("overlap with a different appointment not detected")
	}
}

func TestHasConflictPropagatesSourceError(t *testing.T) {
	wantErr := errors.New("db down")
	d := NewDetector(staticSource{err: wantErr})
	if _, err := d.HasConflict(context.Background(), "p1", at(10, 0), at(10, 30), ""); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want source error", err)
	}
}
