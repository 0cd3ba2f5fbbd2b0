package availability

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/model"
)

func openSlots(times ...string) []TimeSlot {
	out := make([]TimeSlot, 0, len(times))
	for _, tm := range times {
		out = append(out, TimeSlot{Time: tm, Period: PeriodMorning, Available: true, Status: StatusAvailable})
	}
	return out
}

func TestApplyClosures_ForcesSlotClosed(t *testing.T) {
	svcID := uuid.New()
	slots := openSlots("09:00", "09:30", "10:00")
	closures := []model.ManualClosure{
		{Period: "MORNING", TimeSlotStart: "09:30", IsActive: true},
	}

	got, applied := ApplyClosures(slots, closures, svcID)
	if applied != 1 {
		t.Fatalf("expected 1 applied closure, got %d", applied)
	}
	if got[1].Available || got[1].Status != StatusFull {
		t.Fatalf("09:30 should be forced full, got available=%v status=%s", got[1].Available, got[1].Status)
	}
	if !got[0].Available || !got[2].Available {
		t.Fatal("neighbouring slots must be untouched")
	}
}

func TestApplyClosures_ServiceScoping(t *testing.T) {
	svcID := uuid.New()
	otherID := uuid.New()
	slots := openSlots("09:00", "09:30")
	closures := []model.ManualClosure{
		{Period: "MORNING", TimeSlotStart: "09:00", ServiceID: &otherID, IsActive: true},
		{Period: "MORNING", TimeSlotStart: "09:30", ServiceID: nil, IsActive: true},
	}

	got, applied := ApplyClosures(slots, closures, svcID)
	if applied != 1 {
		t.Fatalf("expected 1 applied closure, got %d", applied)
	}
	if !got[0].Available {
		t.Fatal("closure for another service must not apply")
	}
	if got[1].Available {
		t.Fatal("all-services closure must apply")
	}
}

func TestApplyClosures_InactiveIgnored(t *testing.T) {
	slots := openSlots("09:00")
	closures := []model.ManualClosure{
		{Period: "MORNING", TimeSlotStart: "09:00", IsActive: false},
	}
	got, applied := ApplyClosures(slots, closures, uuid.New())
	if applied != 0 || !got[0].Available {
		t.Fatal("inactive closures must not apply")
	}
}

func TestApplyClosures_DuplicatesCollapse(t *testing.T) {
	slots := openSlots("09:00")
	closures := []model.ManualClosure{
		{Period: "MORNING", TimeSlotStart: "09:00", IsActive: true},
		{Period: "MORNING", TimeSlotStart: "9:00", IsActive: true},
	}
	_, applied := ApplyClosures(slots, closures, uuid.New())
	if applied != 1 {
		t.Fatalf("duplicate closures for one slot should count once, got %d", applied)
	}
}

func TestApplyClosures_WinsOverCapacity(t *testing.T) {
	// A closed slot stays closed even when the accounting said limited.
	slots := []TimeSlot{{Time: "09:00", Period: PeriodMorning, Available: true, Status: StatusLimited}}
	closures := []model.ManualClosure{
		{Period: "MORNING", TimeSlotStart: "09:00", IsActive: true},
	}
	got, _ := ApplyClosures(slots, closures, uuid.New())
	if got[0].Available || got[0].Status != StatusFull {
		t.Fatal("closure must override the capacity verdict")
	}
}
