package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/slotline/schedcore/internal/lifecycle"
	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/recurrence"
	"github.com/slotline/schedcore/internal/scheduling"
)

type createRequest struct {
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	CustomerID string `json:"customer_id"`
	StartTime  string `json:"start_time"`
	Recurrence *struct {
		Frequency string `json:"frequency"`
		EndAfter  int    `json:"end_after"`
	} `json:"recurrence,omitempty"`
}

type createResponse struct {
	Appointments []appointmentItem `json:"appointments"`
	SeriesID     string            `json:"series_id,omitempty"`
}

// Appointments handles POST (create) and GET (list) on the collection.
func (a *API) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.create(w, r)
	case http.MethodGet:
		a.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" && actor.Role == lifecycle.RoleCustomer {
		req.CustomerID = actor.ID
	}
	if req.ServiceID == "" || req.ProviderID == "" || req.CustomerID == "" {
		http.Error(w, "service_id, provider_id and customer_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	createReq := scheduling.CreateRequest{
		ServiceID:  req.ServiceID,
		ProviderID: req.ProviderID,
		CustomerID: req.CustomerID,
		Start:      start,
	}
	if req.Recurrence != nil {
		createReq.Recurrence = &recurrence.Rule{
			Frequency: recurrence.Frequency(req.Recurrence.Frequency),
			EndAfter:  req.Recurrence.EndAfter,
		}
	}

	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" && a.idempotency != nil {
		a.createIdempotent(w, r, actor, createReq, key)
		return
	}

	appts, err := a.scheduler.Create(r.Context(), actor, createReq)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, buildCreateResponse(appts))
}

// createIdempotent wraps create in the idempotency-key protocol: a
// retried request with the same key replays the stored response. The
// appointment write commits in its own transaction; a crash between
// the two leaves the key unfinalized, and the retry then falls through
// to the conflict detector, which rejects the duplicate window.
func (a *API) createIdempotent(w http.ResponseWriter, r *http.Request, actor lifecycle.Actor, createReq scheduling.CreateRequest, key string) {
	ctx := r.Context()
	tx, err := a.idempotency.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, done, err := a.idempotency.Lock(ctx, tx, createReq.CustomerID, key)
	if err != nil {
		http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
		return
	}
	if done {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.ResponsePayload)
		_ = tx.Commit(ctx)
		return
	}

	appts, err := a.scheduler.Create(ctx, actor, createReq)
	if err != nil {
		// Leave the key unfinalized so the caller may retry it.
		a.writeDomainError(w, err)
		return
	}

	resp := buildCreateResponse(appts)
	payload, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if err := a.idempotency.Finalize(ctx, tx, createReq.CustomerID, key, http.StatusCreated, payload); err != nil {
		a.logger.Error("finalize idempotency key failed", "err", err, "key", key)
	}
	if err := tx.Commit(ctx); err != nil {
		a.logger.Error("commit idempotency key failed", "err", err, "key", key)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func buildCreateResponse(appts []model.Appointment) createResponse {
	resp := createResponse{Appointments: make([]appointmentItem, 0, len(appts))}
	for _, appt := range appts {
		resp.Appointments = append(resp.Appointments, toItem(appt))
	}
	if len(appts) > 0 {
		resp.SeriesID = appts[0].SeriesID
	}
	return resp
}

func (a *API) list(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	q := scheduling.ListQuery{
		ProviderID: strings.TrimSpace(r.URL.Query().Get("provider_id")),
		Status:     model.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		q.From = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		q.To = t
	}
	if q.Status != "" && !q.Status.Valid() {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	appts, err := a.scheduler.List(r.Context(), actor, q)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toItem(appt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (a *API) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := a.scheduler.Cancel(r.Context(), actor, strings.TrimSpace(req.AppointmentID))
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
}

func (a *API) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	appt, err := a.scheduler.Reschedule(r.Context(), actor, strings.TrimSpace(req.AppointmentID), start)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

type changeStatusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (a *API) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.AppointmentID) == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	to := model.Status(strings.TrimSpace(req.Status))
	if !to.Valid() {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}

	appt, err := a.scheduler.ChangeStatus(r.Context(), actor, strings.TrimSpace(req.AppointmentID), to)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItem(appt))
}

// Slots serves availability for a provider, service and date.
func (a *API) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	rawDate := strings.TrimSpace(r.URL.Query().Get("date"))
	if providerID == "" || serviceID == "" || rawDate == "" {
		http.Error(w, "provider_id, service_id and date required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", rawDate)
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	starts, err := a.scheduler.Slots(r.Context(), providerID, serviceID, date)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	slots := make([]string, 0, len(starts))
	for _, s := range starts {
		slots = append(slots, s.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}
