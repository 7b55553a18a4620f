package schederr

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessagesAreStable(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&InvalidRecurrenceError{Field: "frequency", Reason: `must be one of "daily", "weekly", "monthly"`}, `invalid recurrence: frequency must be one of "daily", "weekly", "monthly"`},
		{&SchedulingConflictError{ProviderID: "p1", OccurrenceIndex: -1, Reason: "time window overlaps an existing appointment"}, "scheduling conflict for provider p1: time window overlaps an existing appointment"},
		{&SchedulingConflictError{ProviderID: "p1", OccurrenceIndex: 3, Reason: "time window overlaps an existing appointment"}, "scheduling conflict for provider p1 at occurrence 3: time window overlaps an existing appointment"},
		{&InvalidTransitionError{From: "pending", To: "completed"}, `invalid transition from "pending" to "completed"`},
		{&InvalidTransitionError{From: "canceled", Op: "reschedule"}, `reschedule not allowed while status is "canceled"`},
		{&PermissionDeniedError{Role: "customer", Op: "complete appointment"}, `role "customer" is not permitted to complete appointment`},
		{&NotFoundError{Entity: "appointment", ID: "abc"}, "appointment abc not found"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestErrorsAsMatchesWrapped(t *testing.T) {
	wrapped := fmt.Errorf("create appointment: %w", &SchedulingConflictError{ProviderID: "p9", OccurrenceIndex: -1, Reason: "lock timeout"})
	var conflict *SchedulingConflictError
	if !errors.As(wrapped, &conflict) {
		t.Fatal("errors.As failed to unwrap SchedulingConflictError")
	}
	if conflict.ProviderID != "p9" {
		t.Fatalf("unexpected provider id %q", conflict.ProviderID)
	}
}
