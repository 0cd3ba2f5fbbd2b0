package availability

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name      string
		available bool
		remaining int
		total     int
		bounded   bool
		want      SlotStatus
	}{
		{"unavailable is full", false, 100, 100, true, StatusFull},
		{"plenty remaining", true, 100, 120, true, StatusAvailable},
		{"under quarter is limited", true, 29, 120, true, StatusLimited},
		{"exactly quarter stays available", true, 30, 120, true, StatusAvailable},
		{"unbounded never limited", true, 1, 120, false, StatusAvailable},
		{"zero total stays available", true, 0, 0, true, StatusAvailable},
	}
	for _, tc := range cases {
		if got := DeriveStatus(tc.available, tc.remaining, tc.total, tc.bounded); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
