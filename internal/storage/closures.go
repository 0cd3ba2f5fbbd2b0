package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/internal/outbox"
	"github.com/clinicboard/clinicboard/libs/db"
)

// ClosureRepository manages manual slot closures. Rows are soft-deleted via
// is_active so closure history survives for auditing.
type ClosureRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewClosureRepository(pool *db.Pool, ob *outbox.Repository) *ClosureRepository {
	return &ClosureRepository{pool: pool, outbox: ob}
}

const closureColumns = `
	id, closure_date, period, time_slot_start, COALESCE(time_slot_end, ''),
	service_id, COALESCE(reason, ''), COALESCE(created_by, ''), is_active, created_at
`

func scanClosure(row pgx.Row) (model.ManualClosure, error) {
	var c model.ManualClosure
	err := row.Scan(&c.ID, &c.ClosureDate, &c.Period, &c.TimeSlotStart, &c.TimeSlotEnd,
		&c.ServiceID, &c.Reason, &c.CreatedBy, &c.IsActive, &c.CreatedAt)
	return c, err
}

// ActiveClosuresOn returns the active closures for a date across all services.
// The engine filters per-service via AppliesTo.
func (r *ClosureRepository) ActiveClosuresOn(ctx context.Context, date string) ([]model.ManualClosure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+closureColumns+`
		FROM manual_closures
		WHERE closure_date = $1 AND is_active
		ORDER BY time_slot_start
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ManualClosure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListOn returns every closure row for a date, inactive ones included.
func (r *ClosureRepository) ListOn(ctx context.Context, date string) ([]model.ManualClosure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+closureColumns+`
		FROM manual_closures
		WHERE closure_date = $1
		ORDER BY time_slot_start, created_at
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ManualClosure
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClosureParams is one slot to close. ServiceID nil closes the slot for every
// service.
type ClosureParams struct {
	Date          string
	Period        string
	TimeSlotStart string
	TimeSlotEnd   string
	ServiceID     *uuid.UUID
	ServiceCode   string
	Reason        string
	CreatedBy     string
}

// CreateBatch inserts a set of closures in one transaction with a single
// change event per affected (date, service) pair. Closing an already-closed
// slot reactivates the existing row instead of duplicating it.
func (r *ClosureRepository) CreateBatch(ctx context.Context, params []ClosureParams) ([]model.ManualClosure, error) {
	if len(params) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := make([]model.ManualClosure, 0, len(params))
	seen := make(map[string]bool)
	for _, p := range params {
		c := model.ManualClosure{
			ID:            uuid.New(),
			ClosureDate:   p.Date,
			Period:        p.Period,
			TimeSlotStart: p.TimeSlotStart,
			TimeSlotEnd:   p.TimeSlotEnd,
			ServiceID:     p.ServiceID,
			Reason:        p.Reason,
			CreatedBy:     p.CreatedBy,
			IsActive:      true,
			CreatedAt:     time.Now().UTC(),
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO manual_closures
				(id, closure_date, period, time_slot_start, time_slot_end,
				 service_id, reason, created_by, is_active, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, true, $9)
			ON CONFLICT (closure_date, period, time_slot_start, service_key)
			DO UPDATE SET is_active = true, reason = EXCLUDED.reason,
				created_by = EXCLUDED.created_by
			RETURNING id
		`, c.ID, c.ClosureDate, c.Period, c.TimeSlotStart, c.TimeSlotEnd,
			c.ServiceID, c.Reason, c.CreatedBy, c.CreatedAt).Scan(&c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)

		key := p.Date + "|" + p.ServiceCode
		if !seen[key] {
			seen[key] = true
			if err := r.insertChangeEvent(ctx, tx, c.ID.String(), p.ServiceCode, p.Date); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate soft-deletes a closure and emits a change event so caches for
// the affected date refresh.
func (r *ClosureRepository) Deactivate(ctx context.Context, id uuid.UUID) (*model.ManualClosure, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	c, err := scanClosure(tx.QueryRow(ctx, `
		SELECT `+closureColumns+`
		FROM manual_closures
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrInvalidState
	}

	_, err = tx.Exec(ctx, `UPDATE manual_closures SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	c.IsActive = false

	serviceCode := ""
	if c.ServiceID != nil {
		if err := tx.QueryRow(ctx, `SELECT code FROM services WHERE id = $1`, *c.ServiceID).Scan(&serviceCode); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}
	if err := r.insertChangeEvent(ctx, tx, c.ID.String(), serviceCode, c.ClosureDate); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// ConflictingReservations lists active reservations already sitting on a slot
// an admin is about to close. Informational only; closing over existing
// bookings is allowed.
func (r *ClosureRepository) ConflictingReservations(ctx context.Context, date, timeSlotStart string, serviceID *uuid.UUID) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE reservation_date = $1 AND time_slot_start = $2
		  AND status IN `+consumingStatuses+`
		  AND ($3::uuid IS NULL OR service_id = $3)
		ORDER BY created_at
	`, date, timeSlotStart, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		rv, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *ClosureRepository) insertChangeEvent(ctx context.Context, tx pgx.Tx, aggregateID, serviceCode, date string) error {
	payload, err := json.Marshal(outbox.ChangePayload{Date: date, ServiceCode: serviceCode})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "manual_closure",
		AggregateID:   aggregateID,
		EventType:     outbox.EventClosureChanged,
		Payload:       payload,
	})
}
