// Package model holds the persistent domain entities shared across the
// scheduling service.
package model

import "time"

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Service is a bookable offering with a fixed duration and a trailing
// buffer during which the provider is still considered busy.
type Service struct {
	ID          string
	ProviderID  string
	Name        string
	Description string
	DurationMin int
	BufferMin   int
	// PriceCents is the catalog price in the smallest currency unit.
	PriceCents int64
	Active     bool
}

// Duration returns the service length as a time.Duration.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMin) * time.Minute
}

// Buffer returns the trailing buffer as a time.Duration.
func (s Service) Buffer() time.Duration {
	return time.Duration(s.BufferMin) * time.Minute
}

// Appointment is a booked occurrence of a service with a provider.
type Appointment struct {
	ID         string
	SeriesID   string // empty for one-off appointments
	ProviderID string
	CustomerID string
	ServiceID  string
	Start      time.Time
	End        time.Time
	BufferMin  int
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Recurrence pattern snapshotted from the booking request. The
	// fields stay zero for one-off appointments.
	IsRecurring    bool
	RecurFrequency string
	RecurEndAfter  int
}

// BlockedUntil is the end of the span during which the appointment makes
// its provider unavailable: the appointment end plus the trailing buffer.
func (a Appointment) BlockedUntil() time.Time {
	return a.End.Add(time.Duration(a.BufferMin) * time.Minute)
}

// Provider is a member of staff appointments can be booked with.
type Provider struct {
	ID     string
	Name   string
	Active bool
}

// Customer is an end user who books appointments.
type Customer struct {
	ID    string
	Name  string
	Email string
}
