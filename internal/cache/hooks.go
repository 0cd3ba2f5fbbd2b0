package cache

import (
	"context"
	"log/slog"

	"github.com/clinicboard/clinicboard/internal/availability"
)

// Hooks adapts a cache into the availability.Invalidator port that write-side
// mutators (and the event consumer) depend on. Mutators must call these
// synchronously after their own commit or readers can see stale availability
// beyond the passive TTL window.
type Hooks struct {
	cache  availability.Cache
	logger *slog.Logger
}

func NewHooks(c availability.Cache, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{cache: c, logger: logger}
}

func (h *Hooks) OnReservationChanged(ctx context.Context, serviceCode, date string) {
	h.logger.Debug("invalidating availability", "reason", "reservation", "service", serviceCode, "date", date)
	h.cache.Invalidate(ctx, date, serviceCode)
}

// OnManualClosureChanged invalidates one service's entry, or the whole date
// when serviceCode is empty (an all-services closure changed).
func (h *Hooks) OnManualClosureChanged(ctx context.Context, date, serviceCode string) {
	h.logger.Debug("invalidating availability", "reason", "closure", "service", serviceCode, "date", date)
	h.cache.Invalidate(ctx, date, serviceCode)
}

var _ availability.Invalidator = (*Hooks)(nil)
