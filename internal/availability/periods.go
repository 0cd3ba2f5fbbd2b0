package availability

import (
	"fmt"
	"strconv"
	"strings"
)

// Period is a named contiguous operating window within a clinic day.
type Period string

const (
	PeriodMorning   Period = "MORNING"
	PeriodAfternoon Period = "AFTERNOON"
	PeriodEvening   Period = "EVENING"
)

// PeriodWindow is one opening window for a date, e.g. MORNING 09:00-12:00.
// Start and End are wall-clock "HH:MM" strings; End is exclusive.
type PeriodWindow struct {
	Period Period
	Start  string
	End    string
}

// CandidateSlot is a generated slot before capacity and closure overlays.
type CandidateSlot struct {
	Time   string
	Period Period
}

// ParseClock converts "HH:MM" (or "H:MM") to minutes since midnight.
func ParseClock(s string) (int, error) {
	h, m, ok := splitClock(s)
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as canonical "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeClock canonicalizes a wall-clock string ("9:00" -> "09:00").
// Unparseable input is returned unchanged so comparisons simply fail to match.
func NormalizeClock(s string) string {
	h, m, ok := splitClock(s)
	if !ok {
		return s
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func splitClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
