//go:build !protogen

package schedule

import (
	"github.com/clinicboard/clinicboard/internal/availability"
)

// NewProvider is a no-op without generated protos; the service uses the local
// clinic_hours tables instead.
func NewProvider(_ string) (availability.ScheduleProvider, error) {
	return nil, nil
}
