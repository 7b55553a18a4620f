package outbox

import (
	"encoding/json"
	"time"

	"github.com/slotline/schedcore/internal/model"
)

// Kafka topic name equals EventType (event per topic).
const (
	EventAppointmentCreated       = "scheduling.appointment.created.v1"
	EventAppointmentStatusChanged = "scheduling.appointment.status_changed.v1"
	EventAppointmentRescheduled   = "scheduling.appointment.rescheduled.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentCreatedPayload is the body of an appointment.created event.
// One event per occurrence; SeriesID ties a recurrence series together.
type AppointmentCreatedPayload struct {
	AppointmentID string    `json:"appointment_id"`
	SeriesID      string    `json:"series_id,omitempty"`
	ProviderID    string    `json:"provider_id"`
	CustomerID    string    `json:"customer_id"`
	ServiceID     string    `json:"service_id"`
	Start         time.Time `json:"start_time"`
	End           time.Time `json:"end_time"`
	Status        string    `json:"status"`
	IsRecurring   bool      `json:"is_recurring"`
}

type StatusChangedPayload struct {
	AppointmentID string `json:"appointment_id"`
	ProviderID    string `json:"provider_id"`
	From          string `json:"from_status"`
	To            string `json:"to_status"`
	ActorID       string `json:"actor_id"`
	ActorRole     string `json:"actor_role"`
}

type RescheduledPayload struct {
	AppointmentID string    `json:"appointment_id"`
	ProviderID    string    `json:"provider_id"`
	OldStart      time.Time `json:"old_start_time"`
	OldEnd        time.Time `json:"old_end_time"`
	NewStart      time.Time `json:"new_start_time"`
	NewEnd        time.Time `json:"new_end_time"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
}

// AppointmentCreated builds the event for a newly persisted appointment.
func AppointmentCreated(a model.Appointment) (Event, error) {
	payload, err := json.Marshal(AppointmentCreatedPayload{
		AppointmentID: a.ID,
		SeriesID:      a.SeriesID,
		ProviderID:    a.ProviderID,
		CustomerID:    a.CustomerID,
		ServiceID:     a.ServiceID,
		Start:         a.Start,
		End:           a.End,
		Status:        string(a.Status),
		IsRecurring:   a.IsRecurring,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     EventAppointmentCreated,
		Payload:       payload,
	}, nil
}

// StatusChanged builds the event for a committed status transition.
func StatusChanged(a model.Appointment, from model.Status, actorID, actorRole string) (Event, error) {
	payload, err := json.Marshal(StatusChangedPayload{
		AppointmentID: a.ID,
		ProviderID:    a.ProviderID,
		From:          string(from),
		To:            string(a.Status),
		ActorID:       actorID,
		ActorRole:     actorRole,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     EventAppointmentStatusChanged,
		Payload:       payload,
	}, nil
}

// Rescheduled builds the event for a committed reschedule.
func Rescheduled(a model.Appointment, oldStart, oldEnd time.Time, actorID, actorRole string) (Event, error) {
	payload, err := json.Marshal(RescheduledPayload{
		AppointmentID: a.ID,
		ProviderID:    a.ProviderID,
		OldStart:      oldStart,
		OldEnd:        oldEnd,
		NewStart:      a.Start,
		NewEnd:        a.End,
		ActorID:       actorID,
		ActorRole:     actorRole,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     EventAppointmentRescheduled,
		Payload:       payload,
	}, nil
}
