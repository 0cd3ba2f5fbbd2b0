package availability

import "sort"

// DefaultGranularityMinutes is the fixed slot step the clinic books at.
const DefaultGranularityMinutes = 30

// GenerateSlots produces the canonical ordered candidate slots for a date from
// its opening windows. Windows are end-exclusive: 09:00-12:00 at a 30 minute
// step yields 09:00 through 11:30. Zero windows (clinic closed) yields nil,
// which is a valid state, not an error. Output is strictly increasing by time.
func GenerateSlots(windows []PeriodWindow, granularityMinutes int) []CandidateSlot {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}

	var slots []CandidateSlot
	for _, win := range windows {
		start, err := ParseClock(win.Start)
		if err != nil {
			continue
		}
		end, err := ParseClock(win.End)
		if err != nil {
			continue
		}
		for t := start; t < end; t += granularityMinutes {
			slots = append(slots, CandidateSlot{Time: FormatClock(t), Period: win.Period})
		}
	}

	// Windows arrive sorted from the schedule provider, but ordering is part of
	// the contract, so enforce it here rather than trusting the caller.
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Time < slots[j].Time
	})
	return slots
}
