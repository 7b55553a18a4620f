package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotline/schedcore/internal/workinghours"
	"github.com/slotline/schedcore/libs/db"
)

// HoursRepository is the local cache of per-provider weekly hours,
// written by the schedule.hours.updated consumer and read by the
// availability path when the schedule service is unreachable.
type HoursRepository struct {
	pool *db.Pool
}

func NewHoursRepository(pool *db.Pool) *HoursRepository {
	return &HoursRepository{pool: pool}
}

var _ workinghours.Store = (*HoursRepository)(nil)

func (r *HoursRepository) GetWeeklyHours(ctx context.Context, providerID string) (workinghours.WeeklyHours, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, open_minutes, close_minutes
		FROM provider_hours
		WHERE provider_id = $1
	`, providerID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	week := make(workinghours.WeeklyHours)
	for rows.Next() {
		var weekday, openMin, closeMin int
		if err := rows.Scan(&weekday, &openMin, &closeMin); err != nil {
			return nil, false, err
		}
		week[time.Weekday(weekday)] = [2]int{openMin, closeMin}
	}
	if rows.Err() != nil {
		return nil, false, rows.Err()
	}
	if len(week) == 0 {
		return nil, false, nil
	}
	return week, true, nil
}

// ReplaceWeeklyHours swaps a provider's cached week atomically.
func (r *HoursRepository) ReplaceWeeklyHours(ctx context.Context, providerID string, week workinghours.WeeklyHours) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM provider_hours WHERE provider_id = $1
		`, providerID); err != nil {
			return err
		}
		for weekday, span := range week {
			if _, err := tx.Exec(ctx, `
				INSERT INTO provider_hours (provider_id, weekday, open_minutes, close_minutes)
				VALUES ($1, $2, $3, $4)
			`, providerID, int(weekday), span[0], span[1]); err != nil {
				return err
			}
		}
		return nil
	})
}
