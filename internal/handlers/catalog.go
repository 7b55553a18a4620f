package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/slotline/schedcore/internal/lifecycle"
	"github.com/slotline/schedcore/internal/model"
)

type serviceItem struct {
	ServiceID       string `json:"service_id"`
	ProviderID      string `json:"provider_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
	Price           string `json:"price"`
}

func toServiceItem(svc model.Service) serviceItem {
	return serviceItem{
		ServiceID:       svc.ID,
		ProviderID:      svc.ProviderID,
		Name:            svc.Name,
		Description:     svc.Description,
		DurationMinutes: svc.DurationMin,
		BufferMinutes:   svc.BufferMin,
		Price:           formatPrice(svc.PriceCents),
	}
}

// Services handles GET (public catalog), POST (provider-only create)
// and PUT (provider-only price/description update).
func (a *API) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listServices(w, r)
	case http.MethodPost:
		a.createService(w, r)
	case http.MethodPut:
		a.updateService(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := a.catalog.ListServices(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	items := make([]serviceItem, 0, len(services))
	for _, svc := range services {
		items = append(items, toServiceItem(svc))
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": items})
}

type createServiceRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
	Price           string `json:"price"`
}

func (a *API) createService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if actor.Role != lifecycle.RoleProvider {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only providers manage the service catalog", Kind: "permission_denied"})
		return
	}
	if a.catalogRepo == nil {
		http.Error(w, "catalog writes not configured", http.StatusNotImplemented)
		return
	}

	var req createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMinutes <= 0 {
		http.Error(w, "name and positive duration_minutes required", http.StatusBadRequest)
		return
	}
	if req.BufferMinutes < 0 {
		http.Error(w, "buffer_minutes must not be negative", http.StatusBadRequest)
		return
	}
	priceCents, err := parsePrice(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}

	svc := model.Service{
		ProviderID:  actor.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		DurationMin: req.DurationMinutes,
		BufferMin:   req.BufferMinutes,
		PriceCents:  priceCents,
		Active:      true,
	}
	id, err := a.catalogRepo.CreateService(r.Context(), svc)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	svc.ID = id
	writeJSON(w, http.StatusCreated, toServiceItem(svc))
}

type updateServiceRequest struct {
	ServiceID   string `json:"service_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// updateService edits a service's name, description and price. Duration
// and buffer are immutable once booked appointments have snapshotted
// them; the repository enforces that the actor owns the service.
func (a *API) updateService(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if actor.Role != lifecycle.RoleProvider {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only providers manage the service catalog", Kind: "permission_denied"})
		return
	}
	if a.catalogRepo == nil {
		http.Error(w, "catalog writes not configured", http.StatusNotImplemented)
		return
	}

	var req updateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ServiceID == "" || req.Name == "" {
		http.Error(w, "service_id and name required", http.StatusBadRequest)
		return
	}
	priceCents, err := parsePrice(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}

	description := strings.TrimSpace(req.Description)
	if err := a.catalogRepo.UpdateServicePricing(r.Context(), req.ServiceID, actor.ID, req.Name, description, priceCents); err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service_id":  req.ServiceID,
		"name":        req.Name,
		"description": description,
		"price":       formatPrice(priceCents),
	})
}

// Providers lists the active providers.
func (a *API) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providers, err := a.catalog.ListProviders(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	type providerItem struct {
		ProviderID string `json:"provider_id"`
		Name       string `json:"name"`
	}
	items := make([]providerItem, 0, len(providers))
	for _, p := range providers {
		items = append(items, providerItem{ProviderID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": items})
}

type addReceptionistRequest struct {
	ReceptionistID string `json:"receptionist_id"`
}

// AddReceptionist lets a provider delegate appointment management.
func (a *API) AddReceptionist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	if actor.Role != lifecycle.RoleProvider {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "only providers delegate to receptionists", Kind: "permission_denied"})
		return
	}
	if a.catalogRepo == nil {
		http.Error(w, "catalog writes not configured", http.StatusNotImplemented)
		return
	}

	var req addReceptionistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ReceptionistID) == "" {
		http.Error(w, "receptionist_id required", http.StatusBadRequest)
		return
	}
	if err := a.catalogRepo.AddDelegation(r.Context(), strings.TrimSpace(req.ReceptionistID), actor.ID); err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"receptionist_id": strings.TrimSpace(req.ReceptionistID),
		"provider_id":     actor.ID,
	})
}

// formatPrice renders cents as a decimal dollars string ("50.00").
func formatPrice(cents int64) string {
	neg := ""
	if cents < 0 {
		neg = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", neg, cents/100, cents%100)
}

// parsePrice accepts "50", "50.5" or "50.00" and returns cents.
func parsePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	whole, frac, _ := strings.Cut(raw, ".")
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || dollars < 0 {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	cents := dollars * 100
	switch len(frac) {
	case 0:
	case 1:
		d, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid price %q", raw)
		}
		cents += d * 10
	case 2:
		d, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid price %q", raw)
		}
		cents += d
	default:
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	return cents, nil
}
