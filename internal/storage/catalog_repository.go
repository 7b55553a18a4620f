package storage

import (
	"context"

	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/libs/db"
)

// CatalogRepository serves the read-mostly reference data: bookable
// services and active providers.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, name, COALESCE(description, ''), duration_minutes, buffer_minutes, price_cents, active
		FROM services
		WHERE active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.Description, &svc.DurationMin, &svc.BufferMin, &svc.PriceCents, &svc.Active); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}

func (r *CatalogRepository) CreateService(ctx context.Context, svc model.Service) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO services (provider_id, name, description, duration_minutes, buffer_minutes, price_cents, active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		RETURNING id
	`, svc.ProviderID, svc.Name, svc.Description, svc.DurationMin, svc.BufferMin, svc.PriceCents, svc.Active).Scan(&id)
	return id, err
}

// UpdateServicePricing changes price, name and description only.
// Duration and buffer stay immutable after creation: existing
// appointments snapshotted them and silently changing intervals under
// booked work is not allowed. The provider scope keeps a provider from
// editing another's catalog.
func (r *CatalogRepository) UpdateServicePricing(ctx context.Context, id, providerID, name, description string, priceCents int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $3, description = NULLIF($4, ''), price_cents = $5
		WHERE id = $1 AND provider_id = $2
	`, id, providerID, name, description, priceCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &schederr.NotFoundError{Entity: "service", ID: id}
	}
	return nil
}

// AddDelegation grants a receptionist appointment management for one
// provider. Inserting twice is a no-op.
func (r *CatalogRepository) AddDelegation(ctx context.Context, receptionistID, providerID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO receptionist_providers (receptionist_id, provider_id)
		VALUES ($1, $2)
		ON CONFLICT (receptionist_id, provider_id) DO NOTHING
	`, receptionistID, providerID)
	return err
}

func (r *CatalogRepository) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, active
		FROM providers
		WHERE active
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Active); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return providers, nil
}
