package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotline/schedcore/internal/lifecycle"
	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/scheduling"
	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/libs/auth"
)

type fakeScheduler struct {
	createFn func(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) ([]model.Appointment, error)
	cancelFn func(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error)
	slotsFn  func(ctx context.Context, providerID, serviceID string, date time.Time) ([]time.Time, error)
	statusFn func(ctx context.Context, actor lifecycle.Actor, id string, to model.Status) (model.Appointment, error)
}

func (f *fakeScheduler) Create(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) ([]model.Appointment, error) {
	return f.createFn(ctx, actor, req)
}

func (f *fakeScheduler) Cancel(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	return f.cancelFn(ctx, actor, id)
}

func (f *fakeScheduler) Reschedule(ctx context.Context, actor lifecycle.Actor, id string, newStart time.Time) (model.Appointment, error) {
	return model.Appointment{}, nil
}

func (f *fakeScheduler) ChangeStatus(ctx context.Context, actor lifecycle.Actor, id string, to model.Status) (model.Appointment, error) {
	return f.statusFn(ctx, actor, id, to)
}

func (f *fakeScheduler) Get(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
	return model.Appointment{}, nil
}

func (f *fakeScheduler) List(ctx context.Context, actor lifecycle.Actor, q scheduling.ListQuery) ([]model.Appointment, error) {
	return nil, nil
}

func (f *fakeScheduler) Slots(ctx context.Context, providerID, serviceID string, date time.Time) ([]time.Time, error) {
	return f.slotsFn(ctx, providerID, serviceID, date)
}

type fakeCatalog struct {
	services []model.Service
}

func (f fakeCatalog) ListServices(ctx context.Context) ([]model.Service, error) {
	return f.services, nil
}

func (f fakeCatalog) ListProviders(ctx context.Context) ([]model.Provider, error) {
	return nil, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testActor = lifecycle.Actor{ID: "cust-1", Role: lifecycle.RoleCustomer}

func sampleAppointment() model.Appointment {
	start := time.Date(2026, time.September, 7, 10, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID:         "appt-1",
		ProviderID: "prov-1",
		CustomerID: "cust-1",
		ServiceID:  "svc-1",
		Start:      start,
		End:        start.Add(30 * time.Minute),
		BufferMin:  10,
		Status:     model.StatusPending,
		CreatedAt:  start.Add(-24 * time.Hour),
	}
}

func TestCreateReturnsCreated(t *testing.T) {
	sched := &fakeScheduler{
		createFn: func(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) ([]model.Appointment, error) {
			assert.Equal(t, "svc-1", req.ServiceID)
			assert.Equal(t, "cust-1", req.CustomerID, "customer id defaults to the actor")
			return []model.Appointment{sampleAppointment()}, nil
		},
	}
	api := NewAPI(sched, fakeCatalog{}, nil, nil, testLogger())

	body := `{"service_id":"svc-1","provider_id":"prov-1","start_time":"2026-09-07T10:00:00Z"}`
	r := WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)), testActor)
	w := httptest.NewRecorder()
	api.Appointments(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Appointments []struct {
			AppointmentID string `json:"appointment_id"`
			StartTime     string `json:"start_time"`
			Status        string `json:"status"`
		} `json:"appointments"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Appointments, 1)
	assert.Equal(t, "appt-1", resp.Appointments[0].AppointmentID)
	assert.Equal(t, "2026-09-07T10:00:00Z", resp.Appointments[0].StartTime)
	assert.Equal(t, "pending", resp.Appointments[0].Status)
}

func TestCreateSerializesRecurrence(t *testing.T) {
	sched := &fakeScheduler{
		createFn: func(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) ([]model.Appointment, error) {
			require.NotNil(t, req.Recurrence)
			a := sampleAppointment()
			a.SeriesID = "series-1"
			a.IsRecurring = true
			a.RecurFrequency = "weekly"
			a.RecurEndAfter = 4
			return []model.Appointment{a}, nil
		},
	}
	api := NewAPI(sched, fakeCatalog{}, nil, nil, testLogger())

	body := `{"service_id":"svc-1","provider_id":"prov-1","start_time":"2026-09-07T10:00:00Z",
		"recurrence":{"frequency":"weekly","end_after":4}}`
	r := WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)), testActor)
	w := httptest.NewRecorder()
	api.Appointments(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Appointments []appointmentItem `json:"appointments"`
		SeriesID     string            `json:"series_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Appointments, 1)
	assert.Equal(t, "series-1", resp.SeriesID)
	assert.True(t, resp.Appointments[0].IsRecurring)
	require.NotNil(t, resp.Appointments[0].Recurrence)
	assert.Equal(t, "weekly", resp.Appointments[0].Recurrence.Frequency)
	assert.Equal(t, 4, resp.Appointments[0].Recurrence.EndAfter)
}

func TestCreateRejectsBadBody(t *testing.T) {
	api := NewAPI(&fakeScheduler{}, fakeCatalog{}, nil, nil, testLogger())

	r := WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader("{")), testActor)
	w := httptest.NewRecorder()
	api.Appointments(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments",
		strings.NewReader(`{"service_id":"svc-1","provider_id":"prov-1","start_time":"tomorrow"}`)), testActor)
	w = httptest.NewRecorder()
	api.Appointments(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"conflict", &schederr.SchedulingConflictError{ProviderID: "prov-1", OccurrenceIndex: -1, Reason: "time window overlaps an existing appointment"}, http.StatusConflict, "scheduling_conflict"},
		{"recurrence", &schederr.InvalidRecurrenceError{Field: "frequency", Reason: "bad"}, http.StatusUnprocessableEntity, "invalid_recurrence"},
		{"not found", &schederr.NotFoundError{Entity: "service", ID: "x"}, http.StatusNotFound, "not_found"},
		{"denied", &schederr.PermissionDeniedError{Role: "customer", Op: "book"}, http.StatusForbidden, "permission_denied"},
		{"transition", &schederr.InvalidTransitionError{From: "pending", To: "completed"}, http.StatusConflict, "invalid_transition"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sched := &fakeScheduler{
				createFn: func(ctx context.Context, actor lifecycle.Actor, req scheduling.CreateRequest) ([]model.Appointment, error) {
					return nil, c.err
				},
			}
			api := NewAPI(sched, fakeCatalog{}, nil, nil, testLogger())

			body := `{"service_id":"svc-1","provider_id":"prov-1","start_time":"2026-09-07T10:00:00Z"}`
			r := WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body)), testActor)
			w := httptest.NewRecorder()
			api.Appointments(w, r)

			require.Equal(t, c.wantCode, w.Code)
			var resp errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, c.wantKind, resp.Kind)
			assert.Equal(t, c.err.Error(), resp.Error, "error message is part of the API")
		})
	}
}

func TestCancelEndpoint(t *testing.T) {
	sched := &fakeScheduler{
		cancelFn: func(ctx context.Context, actor lifecycle.Actor, id string) (model.Appointment, error) {
			a := sampleAppointment()
			a.Status = model.StatusCanceled
			return a, nil
		},
	}
	api := NewAPI(sched, fakeCatalog{}, nil, nil, testLogger())

	r := WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments/cancel",
		strings.NewReader(`{"appointment_id":"appt-1"}`)), testActor)
	w := httptest.NewRecorder()
	api.Cancel(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "canceled", resp.Status)
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	api := NewAPI(&fakeScheduler{}, fakeCatalog{}, nil, nil, testLogger())

	r := WithActor(httptest.NewRequest(http.MethodPost, "/api/v1/appointments/status",
		strings.NewReader(`{"appointment_id":"appt-1","status":"archived"}`)), testActor)
	w := httptest.NewRecorder()
	api.ChangeStatus(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSlotsEndpoint(t *testing.T) {
	sched := &fakeScheduler{
		slotsFn: func(ctx context.Context, providerID, serviceID string, date time.Time) ([]time.Time, error) {
			assert.Equal(t, "prov-1", providerID)
			assert.Equal(t, time.September, date.Month())
			return []time.Time{
				time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC),
				time.Date(2026, time.September, 7, 9, 15, 0, 0, time.UTC),
			}, nil
		},
	}
	api := NewAPI(sched, fakeCatalog{}, nil, nil, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=prov-1&service_id=svc-1&date=2026-09-07", nil)
	w := httptest.NewRecorder()
	api.Slots(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Slots []string `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2026-09-07T09:00:00Z", "2026-09-07T09:15:00Z"}, resp.Slots)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=prov-1&service_id=svc-1&date=07-09-2026", nil)
	w = httptest.NewRecorder()
	api.Slots(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServicesCatalogPriceShape(t *testing.T) {
	api := NewAPI(&fakeScheduler{}, fakeCatalog{services: []model.Service{
		{ID: "svc-1", Name: "Consultation", DurationMin: 30, BufferMin: 10, PriceCents: 5000, Active: true},
	}}, nil, nil, testLogger())

	r := httptest.NewRequest(http.MethodGet, "/api/v1/services", nil)
	w := httptest.NewRecorder()
	api.Services(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Services []serviceItem `json:"services"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Services, 1)
	assert.Equal(t, "50.00", resp.Services[0].Price, "price travels as decimal dollars")
	assert.Equal(t, 30, resp.Services[0].DurationMinutes)
}

func TestUpdateServiceGuards(t *testing.T) {
	api := NewAPI(&fakeScheduler{}, fakeCatalog{}, nil, nil, testLogger())
	body := `{"service_id":"svc-1","name":"Consultation","price":"60.00"}`

	r := WithActor(httptest.NewRequest(http.MethodPut, "/api/v1/services", strings.NewReader(body)), testActor)
	w := httptest.NewRecorder()
	api.Services(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code, "customers may not edit the catalog")

	providerActor := lifecycle.Actor{ID: "prov-1", Role: lifecycle.RoleProvider}
	r = WithActor(httptest.NewRequest(http.MethodPut, "/api/v1/services", strings.NewReader(`{"name":"x"}`)), providerActor)
	w = httptest.NewRecorder()
	api.Services(w, r)
	assert.Equal(t, http.StatusNotImplemented, w.Code, "no catalog repo wired in this fixture")
}

func TestRequireAuth(t *testing.T) {
	secret := "test-secret"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(r)
		require.True(t, ok)
		assert.Equal(t, "prov-1", actor.ID)
		assert.Equal(t, lifecycle.RoleProvider, actor.Role)
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAuth(next, secret, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "missing header")

	token, err := auth.SignHS256(auth.Claims{
		Sub:  "prov-1",
		Role: "provider",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}, secret)
	require.NoError(t, err)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	r.Header.Set("Authorization", "Bearer "+token+"x")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "tampered token")
}

func TestPriceRoundTrip(t *testing.T) {
	cases := []struct {
		raw   string
		cents int64
	}{
		{"50.00", 5000},
		{"50", 5000},
		{"50.5", 5050},
		{"0.99", 99},
		{"", 0},
	}
	for _, c := range cases {
		got, err := parsePrice(c.raw)
		require.NoError(t, err, c.raw)
		assert.Equal(t, c.cents, got, c.raw)
	}
	assert.Equal(t, "50.00", formatPrice(5000))
	assert.Equal(t, "0.05", formatPrice(5))

	for _, bad := range []string{"abc", "1.234", "-5"} {
		_, err := parsePrice(bad)
		assert.Error(t, err, bad)
	}
}
