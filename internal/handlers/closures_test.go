package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/internal/storage"
)

type fakeClosureStore struct {
	batch      []storage.ClosureParams
	closures   []model.ManualClosure
	deactivate *model.ManualClosure
	err        error
}

func (f *fakeClosureStore) CreateBatch(_ context.Context, params []storage.ClosureParams) ([]model.ManualClosure, error) {
	f.batch = params
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.ManualClosure, 0, len(params))
	for _, p := range params {
		out = append(out, model.ManualClosure{
			ID:            uuid.New(),
			ClosureDate:   p.Date,
			Period:        p.Period,
			TimeSlotStart: p.TimeSlotStart,
			ServiceID:     p.ServiceID,
			Reason:        p.Reason,
			CreatedBy:     p.CreatedBy,
			IsActive:      true,
			CreatedAt:     time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		})
	}
	return out, nil
}

func (f *fakeClosureStore) Deactivate(context.Context, uuid.UUID) (*model.ManualClosure, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.deactivate, nil
}

func (f *fakeClosureStore) ListOn(context.Context, string) ([]model.ManualClosure, error) {
	return f.closures, f.err
}

func (f *fakeClosureStore) ConflictingReservations(context.Context, string, string, *uuid.UUID) ([]model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.Reservation{}, nil
}

func newClosureHandler(store *fakeClosureStore) (*ClosureHandler, *recordingInvalidator, *model.Service) {
	svc := &model.Service{ID: uuid.New(), Code: "CLEANING", Name: "Dental Cleaning", DurationMinutes: 25, BufferMinutes: 5, Active: true}
	inv := &recordingInvalidator{}
	h := NewClosureHandler(store, &fakeServiceCatalog{svc: svc}, inv, testLogger())
	return h, inv, svc
}

func TestCreateClosures_AllServices(t *testing.T) {
	store := &fakeClosureStore{}
	h, inv, _ := newClosureHandler(store)

	body := `{"date":"2026-09-15","reason":"equipment maintenance","slots":[{"period":"morning","time_slot_start":"9:00"},{"period":"MORNING","time_slot_start":"09:30"}]}`
	req := httptest.NewRequest("POST", "/api/v1/admin/closures", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.batch) != 2 {
		t.Fatalf("expected 2 closures, got %d", len(store.batch))
	}
	if store.batch[0].Period != "MORNING" || store.batch[0].TimeSlotStart != "09:00" {
		t.Fatalf("slot not normalized: %+v", store.batch[0])
	}
	if store.batch[0].ServiceID != nil {
		t.Fatal("no service_code means all services")
	}
	// All-services closure invalidates the whole date: empty service code.
	if len(inv.closureCalls) != 1 || inv.closureCalls[0] != "|2026-09-15" {
		t.Fatalf("expected whole-date invalidation, got %v", inv.closureCalls)
	}
}

func TestCreateClosures_ScopedToService(t *testing.T) {
	store := &fakeClosureStore{}
	h, inv, svc := newClosureHandler(store)

	body := `{"date":"2026-09-15","service_code":"CLEANING","reason":"dentist away","slots":[{"period":"AFTERNOON","time_slot_start":"14:00"}]}`
	req := httptest.NewRequest("POST", "/api/v1/admin/closures", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.batch[0].ServiceID == nil || *store.batch[0].ServiceID != svc.ID {
		t.Fatal("closure must carry the resolved service id")
	}
	if len(inv.closureCalls) != 1 || inv.closureCalls[0] != "CLEANING|2026-09-15" {
		t.Fatalf("expected scoped invalidation, got %v", inv.closureCalls)
	}
}

func TestCreateClosures_Validation(t *testing.T) {
	h, inv, _ := newClosureHandler(&fakeClosureStore{})
	cases := []string{
		`{"date":"someday","slots":[{"period":"MORNING","time_slot_start":"09:00"}]}`,
		`{"date":"2026-09-15","slots":[]}`,
		`{"date":"2026-09-15","slots":[{"period":"","time_slot_start":"09:00"}]}`,
		`{"date":"2026-09-15","slots":[{"period":"MORNING","time_slot_start":"nine"}]}`,
		`{"date":"2026-09-15","service_code":"NOPE","slots":[{"period":"MORNING","time_slot_start":"09:00"}]}`,
	}
	for i, body := range cases {
		req := httptest.NewRequest("POST", "/api/v1/admin/closures", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		if rec.Code != 400 && rec.Code != 404 {
			t.Fatalf("case %d: expected rejection, got %d", i, rec.Code)
		}
	}
	if len(inv.closureCalls) != 0 {
		t.Fatal("rejected requests must not invalidate")
	}
}

func TestDeactivateClosure(t *testing.T) {
	svcID := uuid.New()
	store := &fakeClosureStore{deactivate: &model.ManualClosure{
		ID:            uuid.New(),
		ClosureDate:   "2026-09-15",
		Period:        "MORNING",
		TimeSlotStart: "09:00",
		ServiceID:     &svcID,
		IsActive:      false,
		CreatedAt:     time.Now(),
	}}
	h, inv, _ := newClosureHandler(store)

	body := `{"closure_id":"` + store.deactivate.ID.String() + `"}`
	req := httptest.NewRequest("POST", "/api/v1/admin/closures/deactivate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Deactivate(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	// The fake catalog cannot resolve this id, so invalidation falls back to
	// the whole date.
	if len(inv.closureCalls) != 1 || inv.closureCalls[0] != "|2026-09-15" {
		t.Fatalf("expected whole-date invalidation fallback, got %v", inv.closureCalls)
	}
}

func TestDeactivateClosure_NotFound(t *testing.T) {
	store := &fakeClosureStore{err: storage.ErrNotFound}
	h, _, _ := newClosureHandler(store)

	body := `{"closure_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest("POST", "/api/v1/admin/closures/deactivate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Deactivate(rec, req)
	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestClosureConflicts(t *testing.T) {
	h, _, _ := newClosureHandler(&fakeClosureStore{})
	req := httptest.NewRequest("GET", "/api/v1/admin/closures/conflicts?date=2026-09-15&time_slot_start=09:00", nil)
	rec := httptest.NewRecorder()
	h.Conflicts(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
