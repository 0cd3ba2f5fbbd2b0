package availability

import (
	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/model"
)

// ApplyClosures forces any slot matched by an active manual closure for the
// requested service to unavailable. A closure always wins over capacity math:
// it is an explicit admin override and must never be re-opened by accounting.
// Duplicate closures for one slot collapse; closing twice equals closing once.
// Returns the annotated slots and the number of slots a closure applied to.
func ApplyClosures(slots []TimeSlot, closures []model.ManualClosure, serviceID uuid.UUID) ([]TimeSlot, int) {
	if len(closures) == 0 {
		return slots, 0
	}

	type slotKey struct {
		period Period
		time   string
	}
	closed := make(map[slotKey]bool)
	for _, c := range closures {
		if !c.IsActive || !c.AppliesTo(serviceID) {
			continue
		}
		closed[slotKey{Period(c.Period), NormalizeClock(c.TimeSlotStart)}] = true
	}
	if len(closed) == 0 {
		return slots, 0
	}

	applied := 0
	for i := range slots {
		if !closed[slotKey{slots[i].Period, slots[i].Time}] {
			continue
		}
		applied++
		slots[i].Available = false
		slots[i].Status = StatusFull
	}
	return slots, applied
}
