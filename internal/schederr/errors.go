// Package schederr defines the typed failure modes of the scheduling
// engine. Callers branch on the concrete type (or errors.As) and the
// messages are part of the API surface, so both stay stable.
package schederr

import "fmt"

// InvalidRecurrenceError reports a recurrence rule the expander refuses.
type InvalidRecurrenceError struct {
	Field  string
	Reason string
}

func (e *InvalidRecurrenceError) Error() string {
	return fmt.Sprintf("invalid recurrence: %s %s", e.Field, e.Reason)
}

// SchedulingConflictError reports an interval overlap or a provider lock
// that could not be acquired in time. OccurrenceIndex is -1 for one-off
// bookings and lock timeouts, and the offending candidate index when a
// series creation fails part way through conflict checking.
type SchedulingConflictError struct {
	ProviderID      string
	OccurrenceIndex int
	Reason          string
}

func (e *SchedulingConflictError) Error() string {
	if e.OccurrenceIndex >= 0 {
		return fmt.Sprintf("scheduling conflict for provider %s at occurrence %d: %s", e.ProviderID, e.OccurrenceIndex, e.Reason)
	}
	return fmt.Sprintf("scheduling conflict for provider %s: %s", e.ProviderID, e.Reason)
}

// InvalidTransitionError reports an illegal status change. Op is the
// requested operation name; To is empty when the operation is not a
// status transition (reschedule on a terminal appointment).
type InvalidTransitionError struct {
	From string
	To   string
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s not allowed while status is %q", e.Op, e.From)
	}
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// PermissionDeniedError reports an actor not authorized for an operation.
type PermissionDeniedError struct {
	Role string
	Op   string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("role %q is not permitted to %s", e.Role, e.Op)
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
