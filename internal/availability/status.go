package availability

// SlotStatus is the UI-facing traffic light for one slot.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusLimited   SlotStatus = "limited"
	StatusFull      SlotStatus = "full"
)

// LimitedFraction is the remaining-capacity fraction below which an available
// slot is downgraded to "limited". Fixed at 25% so the API and every UI agree.
const LimitedFraction = 0.25

// DeriveStatus is the single source of truth for the status string. bounded is
// false when no limit applies (remaining/total carry no meaning then).
func DeriveStatus(available bool, remaining, total int, bounded bool) SlotStatus {
	if !available {
		return StatusFull
	}
	if bounded && total > 0 && remaining > 0 && float64(remaining) < LimitedFraction*float64(total) {
		return StatusLimited
	}
	return StatusAvailable
}
