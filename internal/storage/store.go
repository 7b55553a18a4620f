// Package storage is the pgx-backed persistence layer. Appointment
// writes take a transaction-scoped advisory lock on the provider so
// concurrent replicas serialize the same way the in-process lock
// serializes one replica, and the appointments table carries an
// exclusion constraint on the blocked span as the final backstop.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slotline/schedcore/internal/conflict"
	"github.com/slotline/schedcore/internal/model"
	"github.com/slotline/schedcore/internal/outbox"
	"github.com/slotline/schedcore/internal/scheduling"
	"github.com/slotline/schedcore/internal/schederr"
	"github.com/slotline/schedcore/libs/db"
)

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

var _ scheduling.Store = (*Store)(nil)

const apptColumns = `id, COALESCE(series_id, ''), provider_id, customer_id, service_id,
	start_time, end_time, buffer_minutes, status, created_at, updated_at,
	is_recurring, COALESCE(recur_frequency, ''), COALESCE(recur_end_after, 0)`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.SeriesID,
		&a.ProviderID,
		&a.CustomerID,
		&a.ServiceID,
		&a.Start,
		&a.End,
		&a.BufferMin,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.IsRecurring,
		&a.RecurFrequency,
		&a.RecurEndAfter,
	)
	return a, err
}

func (s *Store) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, &schederr.NotFoundError{Entity: "appointment", ID: id}
	}
	return a, err
}

func (s *Store) GetService(ctx context.Context, id string) (model.Service, error) {
	var svc model.Service
	err := s.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, COALESCE(description, ''), duration_minutes, buffer_minutes, price_cents, active
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.Description, &svc.DurationMin, &svc.BufferMin, &svc.PriceCents, &svc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, &schederr.NotFoundError{Entity: "service", ID: id}
	}
	return svc, err
}

func (s *Store) ProviderExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1 AND active)
	`, id).Scan(&ok)
	return ok, err
}

func (s *Store) CustomerExists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)
	`, id).Scan(&ok)
	return ok, err
}

func (s *Store) IsReceptionistFor(ctx context.Context, receptionistID, providerID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM receptionist_providers
			WHERE receptionist_id = $1 AND provider_id = $2
		)
	`, receptionistID, providerID).Scan(&ok)
	return ok, err
}

// ListBlockedSpans returns the blocked intervals of a provider's
// non-canceled appointments intersecting [from, to).
func (s *Store) ListBlockedSpans(ctx context.Context, providerID string, from, to time.Time) ([]conflict.Span, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, start_time, end_time + make_interval(mins => buffer_minutes)
		FROM appointments
		WHERE provider_id = $1
			AND status <> 'canceled'
			AND start_time < $3
			AND end_time + make_interval(mins => buffer_minutes) > $2
		ORDER BY start_time ASC
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spans []conflict.Span
	for rows.Next() {
		var sp conflict.Span
		if err := rows.Scan(&sp.AppointmentID, &sp.Start, &sp.BlockedUntil); err != nil {
			return nil, err
		}
		spans = append(spans, sp)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return spans, nil
}

func (s *Store) ListAppointments(ctx context.Context, q scheduling.ListQuery) ([]model.Appointment, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE ($1 = '' OR provider_id = $1)
			AND ($2 = '' OR customer_id = $2)
			AND ($3 = '' OR status = $3)
			AND ($4::timestamptz IS NULL OR end_time > $4)
			AND ($5::timestamptz IS NULL OR start_time < $5)
		ORDER BY start_time ASC
		LIMIT $6
	`, q.ProviderID, q.CustomerID, string(q.Status), nullableTime(q.From), nullableTime(q.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// CreateAppointments persists a whole series with its outbox events in
// one transaction, under the provider's advisory lock.
func (s *Store) CreateAppointments(ctx context.Context, appts []model.Appointment, events []outbox.Event) error {
	if len(appts) == 0 {
		return nil
	}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockProviderTx(ctx, tx, appts[0].ProviderID); err != nil {
			return err
		}
		for _, a := range appts {
			_, err := tx.Exec(ctx, `
				INSERT INTO appointments
					(id, series_id, provider_id, customer_id, service_id, start_time, end_time, buffer_minutes, status, created_at, updated_at,
					is_recurring, recur_frequency, recur_end_after)
				VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14)
			`, a.ID, a.SeriesID, a.ProviderID, a.CustomerID, a.ServiceID, a.Start, a.End, a.BufferMin, string(a.Status), a.CreatedAt, a.UpdatedAt,
				a.IsRecurring, a.RecurFrequency, a.RecurEndAfter)
			if err != nil {
				return err
			}
		}
		return s.insertEvents(ctx, tx, events)
	})
	return s.mapWriteErr(err, appts[0].ProviderID)
}

func (s *Store) UpdateStatus(ctx context.Context, appt model.Appointment, evt outbox.Event) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = $3
			WHERE id = $1
		`, appt.ID, string(appt.Status), appt.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &schederr.NotFoundError{Entity: "appointment", ID: appt.ID}
		}
		return s.outbox.Insert(ctx, tx, evt)
	})
	return s.mapWriteErr(err, appt.ProviderID)
}

func (s *Store) UpdateTimes(ctx context.Context, appt model.Appointment, evt outbox.Event) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockProviderTx(ctx, tx, appt.ProviderID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET start_time = $2, end_time = $3, updated_at = $4
			WHERE id = $1
		`, appt.ID, appt.Start, appt.End, appt.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return &schederr.NotFoundError{Entity: "appointment", ID: appt.ID}
		}
		return s.outbox.Insert(ctx, tx, evt)
	})
	return s.mapWriteErr(err, appt.ProviderID)
}

func (s *Store) insertEvents(ctx context.Context, tx pgx.Tx, events []outbox.Event) error {
	for _, evt := range events {
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}

// lockProviderTx serializes writers across service replicas. The lock
// is released automatically at commit or rollback.
func lockProviderTx(ctx context.Context, tx pgx.Tx, providerID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, providerID)
	return err
}

// mapWriteErr translates the exclusion-constraint violation raised by
// the appointments blocked-span constraint into the domain conflict
// error.
func (s *Store) mapWriteErr(err error, providerID string) error {
	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return &schederr.SchedulingConflictError{
			ProviderID:      providerID,
			OccurrenceIndex: -1,
			Reason:          "time window overlaps an existing appointment",
		}
	}
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
