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

// consumingStatuses mirrors model.ReservationStatus.ConsumesCapacity for use
// in SQL predicates. Keep the two in sync.
const consumingStatuses = `('PENDING', 'CONFIRMED', 'COMPLETED')`

// ReservationRepository is the ledger read port plus the booking write path.
// Writes re-check capacity inside the transaction under an advisory lock, so
// the optimistic availability the engine serves never corrupts the ledger.
type ReservationRepository struct {
	pool         *db.Pool
	outbox       *outbox.Repository
	slotCapacity int
}

func NewReservationRepository(pool *db.Pool, ob *outbox.Repository, slotCapacity int) *ReservationRepository {
	if slotCapacity <= 0 {
		slotCapacity = 1
	}
	return &ReservationRepository{pool: pool, outbox: ob, slotCapacity: slotCapacity}
}

const reservationColumns = `
	id, service_id, service_code, reservation_date, period,
	COALESCE(time_slot_start, ''), COALESCE(preferred_time, ''),
	estimated_duration, status, patient_name, patient_phone,
	cancelled_at, COALESCE(cancel_reason, ''), created_at
`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var rv model.Reservation
	err := row.Scan(&rv.ID, &rv.ServiceID, &rv.ServiceCode, &rv.Date, &rv.Period,
		&rv.TimeSlotStart, &rv.PreferredTime, &rv.EstimatedDuration, &rv.Status,
		&rv.PatientName, &rv.PatientPhone, &rv.CancelledAt, &rv.CancelReason, &rv.CreatedAt)
	return rv, err
}

// ReservationsOn returns every reservation for the service and date, all
// statuses included. The accountant decides which rows consume capacity.
func (r *ReservationRepository) ReservationsOn(ctx context.Context, serviceID uuid.UUID, date string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE service_id = $1 AND reservation_date = $2
		ORDER BY created_at
	`, serviceID, date)
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

// ListOn returns every reservation for a date across services, for the admin
// listing surface.
func (r *ReservationRepository) ListOn(ctx context.Context, date string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE reservation_date = $1
		ORDER BY time_slot_start NULLS LAST, created_at
	`, date)
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

// CreateParams carries a validated booking request. EstimatedDuration is the
// service's full slot consumption (treatment plus buffer), resolved by the
// caller from the catalog.
type CreateParams struct {
	Service       *model.Service
	Date          string
	Period        string
	TimeSlotStart string
	PatientName   string
	PatientPhone  string
}

// Create books a slot. It serializes concurrent bookings for the same
// (service, date) with a transaction-scoped advisory lock, re-checks closures
// and capacity against committed state, inserts the reservation and its
// outbox event, and commits. The availability responses are advisory only;
// this re-check is the authority.
func (r *ReservationRepository) Create(ctx context.Context, p CreateParams) (*model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`,
		p.Service.ID.String()+"|"+p.Date)
	if err != nil {
		return nil, err
	}

	var closed bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM manual_closures
			WHERE closure_date = $1 AND period = $2 AND time_slot_start = $3
			  AND is_active AND (service_id IS NULL OR service_id = $4)
		)
	`, p.Date, p.Period, p.TimeSlotStart, p.Service.ID).Scan(&closed)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, ErrSlotClosed
	}

	if err := r.checkCapacity(ctx, tx, p); err != nil {
		return nil, err
	}

	rv := model.Reservation{
		ID:                uuid.New(),
		ServiceID:         p.Service.ID,
		ServiceCode:       p.Service.Code,
		Date:              p.Date,
		Period:            p.Period,
		TimeSlotStart:     p.TimeSlotStart,
		EstimatedDuration: p.Service.SlotMinutes(),
		Status:            model.ReservationPending,
		PatientName:       p.PatientName,
		PatientPhone:      p.PatientPhone,
		CreatedAt:         time.Now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO reservations
			(id, service_id, service_code, reservation_date, period, time_slot_start,
			 estimated_duration, status, patient_name, patient_phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rv.ID, rv.ServiceID, rv.ServiceCode, rv.Date, rv.Period, rv.TimeSlotStart,
		rv.EstimatedDuration, rv.Status, rv.PatientName, rv.PatientPhone, rv.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := r.insertChangeEvent(ctx, tx, rv.ID.String(), rv.ServiceCode, rv.Date); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rv, nil
}

// checkCapacity enforces the service's limit policy and the per-slot cap
// against committed rows. It runs under the advisory lock, so two racing
// bookings for the same service and date serialize here.
func (r *ReservationRepository) checkCapacity(ctx context.Context, tx pgx.Tx, p CreateParams) error {
	var (
		active       bool
		dailyLimit   *int
		limitMinutes *int
	)
	err := tx.QueryRow(ctx, `
		SELECT is_active, daily_limit, daily_limit_minutes
		FROM capacity_limits
		WHERE service_id = $1
	`, p.Service.ID).Scan(&active, &dailyLimit, &limitMinutes)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if active && limitMinutes != nil {
		var consumed int
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(estimated_duration), 0)
			FROM reservations
			WHERE service_id = $1 AND reservation_date = $2
			  AND status IN `+consumingStatuses+`
		`, p.Service.ID, p.Date).Scan(&consumed)
		if err != nil {
			return err
		}
		if consumed+p.Service.SlotMinutes() > *limitMinutes {
			return ErrCapacityExceeded
		}
	} else if active && dailyLimit != nil {
		var count int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM reservations
			WHERE service_id = $1 AND reservation_date = $2
			  AND status IN `+consumingStatuses+`
		`, p.Service.ID, p.Date).Scan(&count)
		if err != nil {
			return err
		}
		if count >= *dailyLimit {
			return ErrCapacityExceeded
		}
	}

	var booked int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM reservations
		WHERE service_id = $1 AND reservation_date = $2
		  AND time_slot_start = $3 AND status IN `+consumingStatuses+`
	`, p.Service.ID, p.Date, p.TimeSlotStart).Scan(&booked)
	if err != nil {
		return err
	}
	if booked >= r.slotCapacity {
		return ErrCapacityExceeded
	}
	return nil
}

// Cancel releases a reservation's capacity. Cancelling an already-cancelled
// or rejected reservation is an invalid transition.
func (r *ReservationRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rv, err := scanReservation(tx.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	switch rv.Status {
	case model.ReservationCancelled, model.ReservationRejected:
		return nil, ErrInvalidState
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		UPDATE reservations
		SET status = $2, cancelled_at = $3, cancel_reason = $4
		WHERE id = $1
	`, id, model.ReservationCancelled, now, reason)
	if err != nil {
		return nil, err
	}
	rv.Status = model.ReservationCancelled
	rv.CancelledAt = &now
	rv.CancelReason = reason

	if err := r.insertChangeEvent(ctx, tx, rv.ID.String(), rv.ServiceCode, rv.Date); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *ReservationRepository) insertChangeEvent(ctx context.Context, tx pgx.Tx, aggregateID, serviceCode, date string) error {
	payload, err := json.Marshal(outbox.ChangePayload{Date: date, ServiceCode: serviceCode})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   aggregateID,
		EventType:     outbox.EventReservationChanged,
		Payload:       payload,
	})
}
