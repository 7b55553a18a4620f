// Package scheduling orchestrates booking: it validates the request,
// expands the recurrence, serializes per provider, runs conflict
// detection and commits through a transactional store with outbox
// events.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slotline/schedcore/internal/conflict"
	"github.com/slotline/schedcore/internal/lifecycle"
	"github.com/slotline/schedcore/internal/locking"
	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/outbox"
	"github.com/slotline/schedcore/internal/recurrence"
	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/internal/timeslot"
)

// Store is the persistence surface of the engine. CreateAppointments,
// UpdateStatus and UpdateTimes must be atomic: rows and their outbox
// events commit together or not at all.
type Store interface {
	conflict.Source

	GetService(ctx context.Context, id string) (model.Service, error)
	ProviderExists(ctx context.Context, id string) (bool, error)
	CustomerExists(ctx context.Context, id string) (bool, error)
	IsReceptionistFor(ctx context.Context, receptionistID, providerID string) (bool, error)

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	ListAppointments(ctx context.Context, q ListQuery) ([]model.Appointment, error)

	CreateAppointments(ctx context.Context, appts []model.Appointment, events []outbox.Event) error
	UpdateStatus(ctx context.Context, appt model.Appointment, evt outbox.Event) error
	UpdateTimes(ctx context.Context, appt model.Appointment, evt outbox.Event) error
}

// ListQuery filters appointment listings.
type ListQuery struct {
	ProviderID string
	CustomerID string
	From       time.Time
	To         time.Time
	Status     model.Status
	Limit      int
}

// CreateRequest is one booking request, one-off or recurring.
type CreateRequest struct {
	ServiceID  string
	ProviderID string
	CustomerID string
	Start      time.Time
	Recurrence *recurrence.Rule
}

// Config tunes the engine.
type Config struct {
	// LockTimeout bounds how long a booking waits for its provider's
	// lock before failing with a conflict.
	LockTimeout time.Duration
}

// Service is the scheduling engine.
type Service struct {
	store       Store
	hours       HoursResolver
	detector    *conflict.Detector
	locks       *locking.Keyed
	lockTimeout time.Duration
	now         func() time.Time
}

func New(store Store, hours HoursResolver, cfg Config) *Service {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	return &Service{
		store:       store,
		hours:       hours,
		detector:    conflict.NewDetector(store),
		locks:       locking.NewKeyed(),
		lockTimeout: cfg.LockTimeout,
		now:         time.Now,
	}
}

// lockProvider serializes conflict-check-plus-commit per provider. A
// lock that cannot be acquired within the timeout is reported as a
// conflict so callers retry instead of queuing indefinitely.
func (s *Service) lockProvider(ctx context.Context, providerID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	release, err := s.locks.Acquire(lockCtx, providerID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &schederr.SchedulingConflictError{
				ProviderID:      providerID,
				OccurrenceIndex: -1,
				Reason:          "provider is busy, try again",
			}
		}
		return nil, err
	}
	return release, nil
}

// Create books an appointment, or a whole series when req.Recurrence is
// set. Series creation is all-or-nothing: if any occurrence conflicts,
// nothing is persisted and the error names the occurrence index.
func (s *Service) Create(ctx context.Context, actor lifecycle.Actor, req CreateRequest) ([]model.Appointment, error) {
	if err := s.authorizeBooking(ctx, actor, req.ProviderID, req.CustomerID); err != nil {
		return nil, err
	}

	svc, err := s.store.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, &schederr.NotFoundError{Entity: "service", ID: req.ServiceID}
	}
	// Services are owned; booking one against another provider's
	// calendar is indistinguishable from the service not existing.
	if svc.ProviderID != req.ProviderID {
		return nil, &schederr.NotFoundError{Entity: "service", ID: req.ServiceID}
	}
	if ok, err := s.store.ProviderExists(ctx, req.ProviderID); err != nil {
		return nil, err
	} else if !ok {
		return nil, &schederr.NotFoundError{Entity: "provider", ID: req.ProviderID}
	}
	if ok, err := s.store.CustomerExists(ctx, req.CustomerID); err != nil {
		return nil, err
	} else if !ok {
		return nil, &schederr.NotFoundError{Entity: "customer", ID: req.CustomerID}
	}

	rule := recurrence.Rule{Frequency: recurrence.Daily, EndAfter: 1}
	seriesID := ""
	if req.Recurrence != nil {
		rule = *req.Recurrence
		seriesID = uuid.NewString()
	}
	spans, err := recurrence.Expand(req.Start, svc.Duration(), rule)
	if err != nil {
		return nil, err
	}

	release, err := s.lockProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	defer release()

	checked := make([]timeslot.Span, 0, len(spans))
	for i, span := range spans {
		eff := span.Effective(svc.Buffer())
		clash, err := s.detector.HasConflict(ctx, req.ProviderID, eff.Start, eff.End, "")
		if err != nil {
			return nil, err
		}
		// A series can also collide with itself when duration plus
		// buffer exceeds the recurrence step.
		for j := 0; !clash && j < len(checked); j++ {
			clash = eff.Overlaps(checked[j])
		}
		if clash {
			idx := i
			if req.Recurrence == nil {
				idx = -1
			}
			return nil, &schederr.SchedulingConflictError{
				ProviderID:      req.ProviderID,
				OccurrenceIndex: idx,
				Reason:          "time window overlaps an existing appointment",
			}
		}
		checked = append(checked, eff)
	}

	now := s.now().UTC()
	appts := make([]model.Appointment, 0, len(spans))
	events := make([]outbox.Event, 0, len(spans))
	for _, span := range spans {
		a := model.Appointment{
			ID:         uuid.NewString(),
			SeriesID:   seriesID,
			ProviderID: req.ProviderID,
			CustomerID: req.CustomerID,
			ServiceID:  svc.ID,
			Start:      span.Start,
			End:        span.End,
			BufferMin:  svc.BufferMin,
			Status:     model.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if req.Recurrence != nil {
			a.IsRecurring = true
			a.RecurFrequency = string(rule.Frequency)
			a.RecurEndAfter = rule.EndAfter
		}
		evt, err := outbox.AppointmentCreated(a)
		if err != nil {
			return nil, fmt.Errorf("encode created event: %w", err)
		}
		appts = append(appts, a)
		events = append(events, evt)
	}

	if err := s.store.CreateAppointments(ctx, appts, events); err != nil {
		return nil, err
	}
	return appts, nil
}

// ChangeStatus drives one edge of the lifecycle state machine.
func (s *Service) ChangeStatus(ctx context.Context, actor lifecycle.Actor, id string, to model.Status) (model.Appointment, error) {
	if !to.Valid() {
		return model.Appointment{}, &schederr.InvalidTransitionError{From: "", To: string(to)}
	}
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.authorizeOnAppointment(ctx, actor, appt); err != nil {
		return model.Appointment{}, err
	}
	if err := lifecycle.Transition(appt.Status, to, actor); err != nil {
		return model.Appointment{}, err
	}

	from := appt.Status
	appt.Status = to
	appt.UpdatedAt = s.now().UTC()
	evt, err := outbox.StatusChanged(appt, from, actor.ID, string(actor.Role))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("encode status event: %w", err)
	}
	if err := s.store.UpdateStatus(ctx, appt, evt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Cancel cancels the appointment. Canceling an already-canceled
// appointment fails with InvalidTransitionError so caller bugs surface.
func (s *Service) Cancel(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	return s.ChangeStatus(ctx, actor, id, model.StatusCanceled)
}

// Reschedule moves a live appointment to a new start. The duration and
// buffer are the ones snapshotted at booking time, not the service's
// current values. On conflict the appointment is left untouched.
func (s *Service) Reschedule(ctx context.Context, actor lifecycle.Actor, id string, newStart time.Time) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.authorizeOnAppointment(ctx, actor, appt); err != nil {
		return model.Appointment{}, err
	}
	if !lifecycle.CanReschedule(appt.Status) {
		return model.Appointment{}, &schederr.InvalidTransitionError{From: string(appt.Status), Op: "reschedule"}
	}

	release, err := s.lockProvider(ctx, appt.ProviderID)
	if err != nil {
		return model.Appointment{}, err
	}
	defer release()

	duration := appt.End.Sub(appt.Start)
	newEnd := newStart.Add(duration)
	blockedUntil := newEnd.Add(time.Duration(appt.BufferMin) * time.Minute)
	clash, err := s.detector.HasConflict(ctx, appt.ProviderID, newStart, blockedUntil, appt.ID)
	if err != nil {
		return model.Appointment{}, err
	}
	if clash {
		return model.Appointment{}, &schederr.SchedulingConflictError{
			ProviderID:      appt.ProviderID,
			OccurrenceIndex: -1,
			Reason:          "time window overlaps an existing appointment",
		}
	}

	oldStart, oldEnd := appt.Start, appt.End
	appt.Start = newStart
	appt.End = newEnd
	appt.UpdatedAt = s.now().UTC()
	evt, err := outbox.Rescheduled(appt, oldStart, oldEnd, actor.ID, string(actor.Role))
	if err != nil {
		return model.Appointment{}, fmt.Errorf("encode rescheduled event: %w", err)
	}
	if err := s.store.UpdateTimes(ctx, appt, evt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// Get returns one appointment, subject to the actor's visibility.
func (s *Service) Get(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.authorizeOnAppointment(ctx, actor, appt); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// List returns appointments matching q, scoped to what the actor may
// see: customers see their own bookings, providers their own calendar.
func (s *Service) List(ctx context.Context, actor lifecycle.Actor, q ListQuery) ([]model.Appointment, error) {
	switch actor.Role {
	case lifecycle.RoleCustomer:
		q.CustomerID = actor.ID
	case lifecycle.RoleProvider:
		q.ProviderID = actor.ID
	case lifecycle.RoleReceptionist:
		if q.ProviderID == "" {
			return nil, &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "list without a provider filter"}
		}
		ok, err := s.store.IsReceptionistFor(ctx, actor.ID, q.ProviderID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "list appointments for this provider"}
		}
	default:
		return nil, &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "list appointments"}
	}
	return s.store.ListAppointments(ctx, q)
}

// authorizeBooking checks who may create a booking: customers book for
// themselves, providers book onto their own calendar, receptionists
// book for providers they work for.
func (s *Service) authorizeBooking(ctx context.Context, actor lifecycle.Actor, providerID, customerID string) error {
	switch actor.Role {
	case lifecycle.RoleCustomer:
		if actor.ID != customerID {
			return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "book for another customer"}
		}
	case lifecycle.RoleProvider:
		if actor.ID != providerID {
			return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "book for another provider"}
		}
	case lifecycle.RoleReceptionist:
		ok, err := s.store.IsReceptionistFor(ctx, actor.ID, providerID)
		if err != nil {
			return err
		}
		if !ok {
			return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "book for this provider"}
		}
	default:
		return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "create appointment"}
	}
	return nil
}

// authorizeOnAppointment checks the actor's relationship to an existing
// appointment. Role permissions per transition are enforced separately
// by the lifecycle table.
func (s *Service) authorizeOnAppointment(ctx context.Context, actor lifecycle.Actor, appt model.Appointment) error {
	switch actor.Role {
	case lifecycle.RoleCustomer:
		if actor.ID != appt.CustomerID {
			return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "access another customer's appointment"}
		}
	case lifecycle.RoleProvider:
		if actor.ID != appt.ProviderID {
			return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "access another provider's appointment"}
		}
	case lifecycle.RoleReceptionist:
		ok, err := s.store.IsReceptionistFor(ctx, actor.ID, appt.ProviderID)
		if err != nil {
			return err
		}
		if !ok {
			return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "access this provider's appointments"}
		}
	default:
		return &schederr.PermissionDeniedError{Role: string(actor.Role), Op: "access appointment"}
	}
	return nil
}
