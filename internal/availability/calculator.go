package availability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clinicboard/clinicboard/internal/model"
)

const dateLayout = "2006-01-02"

// Calculator composes the slot generator, capacity accountant and closure
// filter into the public availability computation for one (service, date).
type Calculator struct {
	catalog  ServiceCatalog
	schedule ScheduleProvider
	ledger   ReservationLedger
	closures ClosureStore
	limits   LimitStore
	cache    Cache

	accountant  Accountant
	granularity int
	logger      *slog.Logger
	now         func() time.Time
}

// Config carries the calculator's collaborators and tuning.
type Config struct {
	Catalog  ServiceCatalog
	Schedule ScheduleProvider
	Ledger   ReservationLedger
	Closures ClosureStore
	Limits   LimitStore
	Cache    Cache

	GranularityMinutes int
	SlotCapacity       int
	Logger             *slog.Logger
	Now                func() time.Time
}

func NewCalculator(cfg Config) *Calculator {
	if cfg.GranularityMinutes <= 0 {
		cfg.GranularityMinutes = DefaultGranularityMinutes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Calculator{
		catalog:     cfg.Catalog,
		schedule:    cfg.Schedule,
		ledger:      cfg.Ledger,
		closures:    cfg.Closures,
		limits:      cfg.Limits,
		cache:       cfg.Cache,
		accountant:  NewAccountant(cfg.SlotCapacity),
		granularity: cfg.GranularityMinutes,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
}

// Calculate returns the slot list and metadata for a service on a date.
//
// Validation failures and unknown services return a structured *Error before
// any other collaborator is consulted. A date the clinic does not operate is a
// success: the result carries ClinicClosed and a message, not an error.
// Ledger/limit lookups fail open with an advisory; catalog/schedule lookups
// fail closed since no correct slot list exists without them.
func (c *Calculator) Calculate(ctx context.Context, serviceCode, date string) (*Result, error) {
	if serviceCode == "" {
		return nil, NewValidationError("service_code is required")
	}
	day, err := ParseDay(date)
	if err != nil {
		return nil, NewValidationError("date must be a real calendar date in YYYY-MM-DD form")
	}
	// Compare at UTC midnight so client/server timezone drift cannot reject
	// today or accept yesterday.
	today := c.now().UTC().Truncate(24 * time.Hour)
	if day.Before(today) {
		return nil, NewValidationError("date %s is in the past", date)
	}

	svc, ok, err := c.catalog.ServiceByCode(ctx, serviceCode)
	if err != nil {
		return nil, NewDependencyError("service catalog", err)
	}
	if !ok {
		return nil, NewServiceNotFound(serviceCode)
	}

	windows, err := c.schedule.PeriodsOn(ctx, date)
	if err != nil {
		return nil, NewDependencyError("clinic schedule", err)
	}
	if len(windows) == 0 {
		return &Result{
			Metadata:     Metadata{Date: date, ServiceCode: svc.Code, ServiceName: svc.Name, ComputedAt: c.now().UTC()},
			ClinicClosed: true,
			Message:      "the clinic does not operate on this date",
		}, nil
	}

	if c.cache != nil {
		if cached, hit := c.cache.Get(ctx, svc.Code, date); hit {
			out := cached.Clone()
			out.Usage.CacheHit = true
			return out, nil
		}
	}

	reservations, closures, policy, advisory := c.fanOut(ctx, svc, date)
	if err := ctx.Err(); err != nil {
		// Deadline hit mid-computation: fail closed with a retryable error
		// rather than returning partial slot data.
		return nil, NewDependencyError("availability computation", err)
	}

	candidates := GenerateSlots(windows, c.granularity)
	slots, usage := c.accountant.Annotate(candidates, reservations, policy, svc.SlotMinutes())
	slots, applied := ApplyClosures(slots, closures, svc.ID)
	usage.AppliedClosures = applied

	res := &Result{
		Slots:    slots,
		Metadata: c.summarize(svc, date, slots, advisory),
		Usage:    usage,
	}
	if c.cache != nil {
		c.cache.Set(ctx, svc.Code, date, res.Clone())
	}
	return res, nil
}

// fanOut issues the three mutually independent reads concurrently. Ledger and
// limit failures degrade to optimistic defaults: a limiting-subsystem outage
// must never block every booking, the write path re-validates anyway. The same
// reasoning covers closures; an admin override lost to an outage re-surfaces
// as a write-time conflict at worst.
func (c *Calculator) fanOut(ctx context.Context, svc *model.Service, date string) ([]model.Reservation, []model.ManualClosure, LimitPolicy, string) {
	var (
		wg           sync.WaitGroup
		reservations []model.Reservation
		closures     []model.ManualClosure
		policy       LimitPolicy
		ledgerErr    error
		closureErr   error
		limitErr     error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		reservations, ledgerErr = c.ledger.ReservationsOn(ctx, svc.ID, date)
	}()
	go func() {
		defer wg.Done()
		closures, closureErr = c.closures.ActiveClosuresOn(ctx, date)
	}()
	go func() {
		defer wg.Done()
		policy, limitErr = c.limits.PolicyFor(ctx, svc.ID)
	}()
	wg.Wait()

	advisory := ""
	if ledgerErr != nil {
		c.logger.Warn("reservation ledger unavailable; treating day as unbooked", "err", ledgerErr, "date", date)
		reservations = nil
		advisory = "capacity data unavailable; availability shown optimistically"
	}
	if limitErr != nil {
		c.logger.Warn("capacity limit lookup failed; treating service as unlimited", "err", limitErr, "service", svc.Code)
		policy = Unlimited()
		advisory = "capacity data unavailable; availability shown optimistically"
	}
	if closureErr != nil {
		c.logger.Warn("manual closure lookup failed; closures not applied", "err", closureErr, "date", date)
		closures = nil
		advisory = "capacity data unavailable; availability shown optimistically"
	}
	return reservations, closures, policy, advisory
}

func (c *Calculator) summarize(svc *model.Service, date string, slots []TimeSlot, advisory string) Metadata {
	md := Metadata{
		Date:        date,
		ServiceCode: svc.Code,
		ServiceName: svc.Name,
		TotalSlots:  len(slots),
		Advisory:    advisory,
		ComputedAt:  c.now().UTC(),
	}
	for _, s := range slots {
		if s.Available {
			md.AvailableSlots++
		} else {
			md.UnavailableSlots++
		}
	}
	return md
}

// ParseDay enforces the canonical YYYY-MM-DD form; Go's parser tolerates
// unpadded components, so round-trip the value to reject those. The booking
// write path shares it so both sides agree on what a valid day is.
func ParseDay(date string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	if day.Format(dateLayout) != date {
		return time.Time{}, &Error{Code: CodeValidation, Message: "non-canonical date"}
	}
	return day, nil
}
