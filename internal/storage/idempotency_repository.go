package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/slotline/schedcore/libs/db"
)

// IdempotencyRepository stores create-request keys so a retried booking
// replays the original response instead of double-booking.
type IdempotencyRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	CustomerID      string
	IdempotencyKey  string
	StatusCode      int
	ResponsePayload []byte
}

func NewIdempotencyRepository(pool *db.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Lock claims the key inside tx. The second return is true when a
// previous request already finished with this key, in which case the
// record carries the stored response. The row stays locked until the
// transaction ends, so a concurrent retry waits rather than racing.
func (r *IdempotencyRepository) Lock(ctx context.Context, tx pgx.Tx, customerID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectForUpdate(ctx, tx, customerID, key)
	if err == nil {
		return rec, rec.StatusCode != 0, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (customer_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (customer_id, idempotency_key) DO NOTHING
	`, customerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectForUpdate(ctx, tx, customerID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, rec.StatusCode != 0, nil
}

// Finalize records the response for the key inside tx.
func (r *IdempotencyRepository) Finalize(ctx context.Context, tx pgx.Tx, customerID, key string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE customer_id = $1 AND idempotency_key = $2
	`, customerID, key, statusCode, response)
	return err
}

func (r *IdempotencyRepository) selectForUpdate(ctx context.Context, tx pgx.Tx, customerID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT customer_id,
			idempotency_key,
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE customer_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, customerID, key).Scan(
		&rec.CustomerID,
		&rec.IdempotencyKey,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
