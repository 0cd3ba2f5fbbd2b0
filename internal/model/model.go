package model

import (
	"time"

	"github.com/google/uuid"
)

// Service is a catalog entry for a bookable clinic service.
type Service struct {
	ID              uuid.UUID
	Code            string
	Name            string
	DurationMinutes int
	BufferMinutes   int
	Active          bool
}

// SlotMinutes is the full per-appointment consumption for the service,
// treatment time plus turnover buffer.
func (s *Service) SlotMinutes() int {
	return s.DurationMinutes + s.BufferMinutes
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationNoShow    ReservationStatus = "NO_SHOW"
	ReservationRejected  ReservationStatus = "REJECTED"
)

// ConsumesCapacity reports whether a reservation in this status counts against
// the daily capacity budget. Cancelled, no-show and rejected reservations never
// consume capacity.
func (s ReservationStatus) ConsumesCapacity() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCompleted:
		return true
	}
	return false
}

// Reservation is a ledger row for one booked appointment. Date is the clinic-local
// calendar day ("2006-01-02"); TimeSlotStart and PreferredTime are wall-clock
// "HH:MM" strings. TimeSlotStart is authoritative when set, PreferredTime is the
// free-text fallback from older booking forms.
type Reservation struct {
	ID                uuid.UUID
	ServiceID         uuid.UUID
	ServiceCode       string
	Date              string
	Period            string
	TimeSlotStart     string
	PreferredTime     string
	EstimatedDuration int
	Status            ReservationStatus
	PatientName       string
	PatientPhone      string
	CancelledAt       *time.Time
	CancelReason      string
	CreatedAt         time.Time
}

// ManualClosure is an admin-created override that blocks one slot regardless of
// computed capacity. ServiceID nil means the closure applies to every service.
// Rows are soft-deleted via IsActive so closure history is retained.
type ManualClosure struct {
	ID            uuid.UUID
	ClosureDate   string
	Period        string
	TimeSlotStart string
	TimeSlotEnd   string
	ServiceID     *uuid.UUID
	Reason        string
	CreatedBy     string
	IsActive      bool
	CreatedAt     time.Time
}

// AppliesTo reports whether the closure suppresses slots for the given service.
func (c *ManualClosure) AppliesTo(serviceID uuid.UUID) bool {
	return c.ServiceID == nil || *c.ServiceID == serviceID
}

// CapacityLimit is the persisted per-service limit row. At most one of
// DailyLimit / DailyLimitMinutes is meaningful; normalization into a policy
// happens in the availability package.
type CapacityLimit struct {
	ServiceID         uuid.UUID
	IsActive          bool
	DailyLimit        *int
	SoftDailyLimit    *int
	DailyLimitMinutes *int
	UpdatedAt         time.Time
}
