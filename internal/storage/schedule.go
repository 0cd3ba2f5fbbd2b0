package storage

import (
	"context"
	"time"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/libs/db"
)

// ScheduleRepository reads the clinic's operating periods from the weekly
// clinic_hours template minus the clinic_holidays exceptions.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// PeriodsOn returns the opening windows for a date, sorted by start time.
// An empty result means the clinic does not operate that day; holidays
// suppress the weekday template entirely.
func (r *ScheduleRepository) PeriodsOn(ctx context.Context, date string) ([]availability.PeriodWindow, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return nil, err
	}

	var holiday bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM clinic_holidays WHERE holiday_date = $1)
	`, date).Scan(&holiday)
	if err != nil {
		return nil, err
	}
	if holiday {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT period, open_time, close_time
		FROM clinic_hours
		WHERE weekday = $1 AND is_active
		ORDER BY open_time
	`, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []availability.PeriodWindow
	for rows.Next() {
		var w availability.PeriodWindow
		var period string
		if err := rows.Scan(&period, &w.Start, &w.End); err != nil {
			return nil, err
		}
		w.Period = availability.Period(period)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}
