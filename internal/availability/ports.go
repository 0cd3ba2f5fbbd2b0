package availability

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/model"
)

// The engine's external collaborators. Each is an independent read for the same
// (service, date); the calculator fans the ledger/closure/limit reads out
// concurrently since nothing orders them.

// ServiceCatalog resolves service codes to catalog entries.
type ServiceCatalog interface {
	// ServiceByCode returns (nil, false, nil) for an unknown or inactive code.
	ServiceByCode(ctx context.Context, code string) (*model.Service, bool, error)
}

// ScheduleProvider yields the clinic's opening windows for a date.
// An empty slice means the clinic does not operate that day.
type ScheduleProvider interface {
	PeriodsOn(ctx context.Context, date string) ([]PeriodWindow, error)
}

// ReservationLedger lists the existing reservations for a service and date,
// every status included; the accountant decides which ones consume capacity.
type ReservationLedger interface {
	ReservationsOn(ctx context.Context, serviceID uuid.UUID, date string) ([]model.Reservation, error)
}

// ClosureStore lists the active manual closures for a date, all services.
type ClosureStore interface {
	ActiveClosuresOn(ctx context.Context, date string) ([]model.ManualClosure, error)
}

// LimitStore resolves the capacity limit policy for a service.
type LimitStore interface {
	PolicyFor(ctx context.Context, serviceID uuid.UUID) (LimitPolicy, error)
}

// Cache memoizes computed results per (serviceCode, date) with explicit,
// event-driven invalidation. Invalidate with an empty serviceCode clears every
// entry for the date (an all-services closure changed).
type Cache interface {
	Get(ctx context.Context, serviceCode, date string) (*Result, bool)
	Set(ctx context.Context, serviceCode, date string, res *Result)
	Invalidate(ctx context.Context, date, serviceCode string)
}

// Invalidator is the typed port write-side mutators call synchronously after
// their own commit. serviceCode is empty on closure changes that affect all
// services.
type Invalidator interface {
	OnReservationChanged(ctx context.Context, serviceCode, date string)
	OnManualClosureChanged(ctx context.Context, date, serviceCode string)
}
