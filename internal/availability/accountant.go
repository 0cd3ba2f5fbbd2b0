package availability

import "github.com/clinicboard/clinicboard/internal/model"

// Accountant overlays consumed/remaining capacity onto generated slots.
// SlotCapacity is the number of simultaneous bookings one slot can hold under
// the count policy (chairs per slot).
type Accountant struct {
	SlotCapacity int
}

func NewAccountant(slotCapacity int) Accountant {
	if slotCapacity <= 0 {
		slotCapacity = 1
	}
	return Accountant{SlotCapacity: slotCapacity}
}

// Annotate computes per-slot and per-day capacity for the requested service.
// serviceMinutes is the requested service's per-appointment consumption: under
// the duration policy a slot stays available only while the remaining daily
// budget can still absorb one more appointment of THIS service, which lets two
// short services interleave while a long one is already blocked.
func (a Accountant) Annotate(slots []CandidateSlot, reservations []model.Reservation, policy LimitPolicy, serviceMinutes int) ([]TimeSlot, DayUsage) {
	perSlot := make(map[string]int)
	usage := DayUsage{Policy: policy.Kind().String()}
	for _, res := range reservations {
		if !res.Status.ConsumesCapacity() {
			continue
		}
		usage.ActiveReservations++
		usage.ConsumedMinutes += res.EstimatedDuration
		if t := reservationClock(res); t != "" {
			perSlot[t]++
		}
	}

	out := make([]TimeSlot, 0, len(slots))
	switch policy.Kind() {
	case PolicyDuration:
		total := policy.DailyLimitMinutes()
		remaining := total - usage.ConsumedMinutes
		if remaining < 0 {
			remaining = 0
		}
		for _, s := range slots {
			booked := perSlot[s.Time]
			open := remaining >= serviceMinutes && serviceMinutes > 0
			out = append(out, TimeSlot{
				Time:             s.Time,
				Period:           s.Period,
				Available:        open,
				CurrentBookings:  booked,
				MaxCapacity:      a.SlotCapacity,
				RemainingMinutes: intPtr(remaining),
				TotalMinutes:     intPtr(total),
				Status:           DeriveStatus(open, remaining, total, true),
			})
		}

	case PolicyCount:
		// A reached daily count closes every slot uniformly, earlier ones
		// included; "daily limit" means the day, not its tail.
		dayFull := usage.ActiveReservations >= policy.DailyLimit()
		for _, s := range slots {
			booked := perSlot[s.Time]
			open := !dayFull && booked < a.SlotCapacity
			out = append(out, TimeSlot{
				Time:            s.Time,
				Period:          s.Period,
				Available:       open,
				CurrentBookings: booked,
				MaxCapacity:     a.SlotCapacity,
				Status:          DeriveStatus(open, a.SlotCapacity-booked, a.SlotCapacity, true),
			})
		}

	default:
		for _, s := range slots {
			booked := perSlot[s.Time]
			out = append(out, TimeSlot{
				Time:            s.Time,
				Period:          s.Period,
				Available:       true,
				CurrentBookings: booked,
				MaxCapacity:     a.SlotCapacity,
				Status:          StatusAvailable,
			})
		}
	}
	return out, usage
}

// reservationClock resolves the slot a reservation occupies: the structured
// time_slot_start when present, else the legacy preferred_time free text.
func reservationClock(res model.Reservation) string {
	if res.TimeSlotStart != "" {
		return NormalizeClock(res.TimeSlotStart)
	}
	if res.PreferredTime != "" {
		return NormalizeClock(res.PreferredTime)
	}
	return ""
}

func intPtr(v int) *int { return &v }
