package availability

import "time"

// TimeSlot is a computed, ephemeral slot value; it is never persisted.
// RemainingMinutes/TotalMinutes are nil when no duration budget applies.
type TimeSlot struct {
	Time             string     `json:"time"`
	Period           Period     `json:"period"`
	Available        bool       `json:"available"`
	CurrentBookings  int        `json:"current_bookings"`
	MaxCapacity      int        `json:"max_capacity"`
	RemainingMinutes *int       `json:"remaining_minutes"`
	TotalMinutes     *int       `json:"total_minutes"`
	Status           SlotStatus `json:"status"`
}

// DayUsage carries the intermediate accounting figures; surfaced only through
// debug metadata.
type DayUsage struct {
	ConsumedMinutes    int    `json:"consumed_minutes"`
	ActiveReservations int    `json:"active_reservations"`
	AppliedClosures    int    `json:"applied_closures"`
	Policy             string `json:"policy"`
	CacheHit           bool   `json:"cache_hit"`
}

// Metadata summarizes a computed slot list.
type Metadata struct {
	Date             string    `json:"date"`
	ServiceCode      string    `json:"service_code"`
	ServiceName      string    `json:"service_name"`
	TotalSlots       int       `json:"total_slots"`
	AvailableSlots   int       `json:"available_slots"`
	UnavailableSlots int       `json:"unavailable_slots"`
	Advisory         string    `json:"advisory,omitempty"`
	ComputedAt       time.Time `json:"computed_at"`
}

// Result is the calculator's answer for one (service, date) query.
// ClinicClosed marks the benign no-clinic-hours outcome: an empty, valid result
// rather than an error.
type Result struct {
	Slots        []TimeSlot `json:"slots"`
	Metadata     Metadata   `json:"metadata"`
	ClinicClosed bool       `json:"clinic_closed"`
	Message      string     `json:"message,omitempty"`
	Usage        DayUsage   `json:"usage"`
}

// Clone returns a copy safe to hand to a caller while the original sits in the
// cache. Slot values are copied; pointer fields are shared but never mutated.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Slots = make([]TimeSlot, len(r.Slots))
	copy(out.Slots, r.Slots)
	return &out
}
