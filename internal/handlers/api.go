// Package handlers exposes the scheduling engine over HTTP. Domain
// errors map to stable status codes and a JSON body carrying the error
// kind, which frontends branch on.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/slotline/schedcore/internal/lifecycle"
	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/scheduling"
	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/internal/storage"
)

// Scheduler is the engine surface the handlers call. The scheduling
// service implements it; tests substitute fakes.
type Scheduler interface {
	Create(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) ([]model.Appointment, error)
	Cancel(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	Reschedule(ctx context.Context, actor lifecycle.Actor, id string, newStart time.Time) (model.Appointment, error)
	ChangeStatus(ctx context.Context, actor lifecycle.Actor, id string, to model.Status) (model.Appointment, error)
	Get(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	List(ctx context.Context, actor lifecycle.Actor, q scheduling.ListQuery) ([]model.Appointment, error)
	Slots(ctx context.Context, providerID, serviceID string, date time.Time) ([]time.Time, error)
}

// Catalog is the reference-data surface.
type Catalog interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	ListProviders(ctx context.Context) ([]model.Provider, error)
}

type API struct {
	scheduler   Scheduler
	catalog     Catalog
	catalogRepo *storage.CatalogRepository
	idempotency *storage.IdempotencyRepository
	logger      *slog.Logger
}

// NewAPI wires the HTTP layer. catalogRepo and idempotency may be nil;
// the matching endpoints then degrade (no catalog writes, no replay).
func NewAPI(scheduler Scheduler, catalog Catalog, catalogRepo *storage.CatalogRepository, idempotency *storage.IdempotencyRepository, logger *slog.Logger) *API {
	return &API{
		scheduler:   scheduler,
		catalog:     catalog,
		catalogRepo: catalogRepo,
		idempotency: idempotency,
		logger:      logger,
	}
}

// Register mounts the API's routes. Auth is applied by the caller.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/slots", a.Slots)
	mux.HandleFunc("/api/v1/appointments", a.Appointments)
	mux.HandleFunc("/api/v1/appointments/cancel", a.Cancel)
	mux.HandleFunc("/api/v1/appointments/reschedule", a.Reschedule)
	mux.HandleFunc("/api/v1/appointments/status", a.ChangeStatus)
	mux.HandleFunc("/api/v1/services", a.Services)
	mux.HandleFunc("/api/v1/providers", a.Providers)
	mux.HandleFunc("/api/v1/receptionists", a.AddReceptionist)
}

type appointmentItem struct {
	AppointmentID string          `json:"appointment_id"`
	SeriesID      string          `json:"series_id,omitempty"`
	ProviderID    string          `json:"provider_id"`
	CustomerID    string          `json:"customer_id"`
	ServiceID     string          `json:"service_id"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	Status        string          `json:"status"`
	IsRecurring   bool            `json:"is_recurring"`
	Recurrence    *recurrenceItem `json:"recurrence,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

type recurrenceItem struct {
	Frequency string `json:"frequency"`
	EndAfter  int    `json:"end_after"`
}

func toItem(a model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: a.ID,
		SeriesID:      a.SeriesID,
		ProviderID:    a.ProviderID,
		CustomerID:    a.CustomerID,
		ServiceID:     a.ServiceID,
		StartTime:     a.Start.UTC().Format(time.RFC3339),
		EndTime:       a.End.UTC().Format(time.RFC3339),
		Status:        string(a.Status),
		IsRecurring:   a.IsRecurring,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.IsRecurring {
		item.Recurrence = &recurrenceItem{Frequency: a.RecurFrequency, EndAfter: a.RecurEndAfter}
	}
	return item
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeDomainError maps the engine's typed errors onto the API's stable
// status codes. Anything unrecognized is a 500 with a generic body.
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFound   *schederr.NotFoundError
		denied     *schederr.PermissionDeniedError
		conflict   *schederr.SchedulingConflictError
		transition *schederr.InvalidTransitionError
		recur      *schederr.InvalidRecurrenceError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFound.Error(), Kind: "not_found"})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, errorBody{Error: denied.Error(), Kind: "permission_denied"})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: conflict.Error(), Kind: "scheduling_conflict"})
	case errors.As(err, &transition):
		writeJSON(w, http.StatusConflict, errorBody{Error: transition.Error(), Kind: "invalid_transition"})
	case errors.As(err, &recur):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: recur.Error(), Kind: "invalid_recurrence"})
	default:
		a.logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "internal"})
	}
}
