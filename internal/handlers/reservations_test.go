package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/internal/storage"
)

type fakeReservationStore struct {
	created  *storage.CreateParams
	createRv *model.Reservation
	err      error
}

func (f *fakeReservationStore) Create(_ context.Context, p storage.CreateParams) (*model.Reservation, error) {
	f.created = &p
	if f.err != nil {
		return nil, f.err
	}
	return f.createRv, nil
}

func (f *fakeReservationStore) Cancel(_ context.Context, id uuid.UUID, reason string) (*model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	rv := *f.createRv
	rv.ID = id
	rv.Status = model.ReservationCancelled
	rv.CancelReason = reason
	return &rv, nil
}

func (f *fakeReservationStore) ListOn(context.Context, string) ([]model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.Reservation{*f.createRv}, nil
}

type fakeServiceCatalog struct {
	svc *model.Service
}

func (f *fakeServiceCatalog) ServiceByCode(_ context.Context, code string) (*model.Service, bool, error) {
	if f.svc != nil && f.svc.Code == code {
		return f.svc, true, nil
	}
	return nil, false, nil
}

func (f *fakeServiceCatalog) ServiceCodeByID(_ context.Context, id uuid.UUID) (string, bool, error) {
	if f.svc != nil && f.svc.ID == id {
		return f.svc.Code, true, nil
	}
	return "", false, nil
}

type recordingInvalidator struct {
	reservationCalls []string
	closureCalls     []string
}

func (r *recordingInvalidator) OnReservationChanged(_ context.Context, serviceCode, date string) {
	r.reservationCalls = append(r.reservationCalls, serviceCode+"|"+date)
}

func (r *recordingInvalidator) OnManualClosureChanged(_ context.Context, date, serviceCode string) {
	r.closureCalls = append(r.closureCalls, serviceCode+"|"+date)
}

func testReservation(svc *model.Service) *model.Reservation {
	return &model.Reservation{
		ID:                uuid.New(),
		ServiceID:         svc.ID,
		ServiceCode:       svc.Code,
		Date:              "2026-09-15",
		Period:            "MORNING",
		TimeSlotStart:     "09:30",
		EstimatedDuration: svc.SlotMinutes(),
		Status:            model.ReservationPending,
		PatientName:       "Jordan Doe",
		CreatedAt:         time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newReservationHandler(store *fakeReservationStore) (*ReservationHandler, *recordingInvalidator, *model.Service) {
	svc := &model.Service{ID: uuid.New(), Code: "CLEANING", Name: "Dental Cleaning", DurationMinutes: 25, BufferMinutes: 5, Active: true}
	if store.createRv == nil {
		store.createRv = testReservation(svc)
	}
	inv := &recordingInvalidator{}
	h := NewReservationHandler(store, &fakeServiceCatalog{svc: svc}, inv, testLogger())
	h.now = func() time.Time { return time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC) }
	return h, inv, svc
}

func TestCreateReservation_Success(t *testing.T) {
	store := &fakeReservationStore{}
	h, inv, svc := newReservationHandler(store)

	body := `{"service_code":"CLEANING","date":"2026-09-15","period":"morning","time_slot_start":"9:30","patient_name":"Jordan Doe","patient_phone":"555-0100"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 201 {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.created == nil {
		t.Fatal("store was not called")
	}
	if store.created.Period != "MORNING" || store.created.TimeSlotStart != "09:30" {
		t.Fatalf("request not normalized: %+v", store.created)
	}
	if store.created.Service.ID != svc.ID {
		t.Fatal("wrong service resolved")
	}
	if len(inv.reservationCalls) != 1 || inv.reservationCalls[0] != "CLEANING|2026-09-15" {
		t.Fatalf("expected one invalidation for CLEANING|2026-09-15, got %v", inv.reservationCalls)
	}
}

func TestCreateReservation_SlotTaken(t *testing.T) {
	store := &fakeReservationStore{err: storage.ErrCapacityExceeded}
	h, inv, _ := newReservationHandler(store)

	body := `{"service_code":"CLEANING","date":"2026-09-15","period":"MORNING","time_slot_start":"09:30","patient_name":"Jordan Doe"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 409 {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Error != "SLOT_TAKEN" {
		t.Fatalf("expected SLOT_TAKEN, got %s", resp.Error)
	}
	if len(inv.reservationCalls) != 0 {
		t.Fatal("failed create must not invalidate the cache")
	}
}

func TestCreateReservation_Validation(t *testing.T) {
	h, _, _ := newReservationHandler(&fakeReservationStore{})
	cases := []string{
		`not json`,
		`{"service_code":"","date":"2026-09-15","period":"MORNING","time_slot_start":"09:30","patient_name":"A"}`,
		`{"service_code":"CLEANING","date":"soon","period":"MORNING","time_slot_start":"09:30","patient_name":"A"}`,
		`{"service_code":"CLEANING","date":"2026-09-15","period":"MORNING","time_slot_start":"half past nine","patient_name":"A"}`,
		`{"service_code":"CLEANING","date":"2026-09-15","period":"MORNING","time_slot_start":"09:30","patient_name":""}`,
	}
	for i, body := range cases {
		req := httptest.NewRequest("POST", "/api/v1/public/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Create(rec, req)
		if rec.Code != 400 {
			t.Fatalf("case %d: expected 400, got %d", i, rec.Code)
		}
	}
}

func TestCreateReservation_PastDateRejected(t *testing.T) {
	store := &fakeReservationStore{}
	h, inv, _ := newReservationHandler(store)

	// Handler clock is 2026-09-01; the day before must never reach the store.
	body := `{"service_code":"CLEANING","date":"2026-08-31","period":"MORNING","time_slot_start":"09:30","patient_name":"Jordan Doe"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400 for a past date, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.created != nil {
		t.Fatal("past-date booking must not reach the store")
	}
	if len(inv.reservationCalls) != 0 {
		t.Fatal("rejected booking must not invalidate the cache")
	}
}

func TestCreateReservation_TodayIsBookable(t *testing.T) {
	store := &fakeReservationStore{}
	h, _, _ := newReservationHandler(store)

	body := `{"service_code":"CLEANING","date":"2026-09-01","period":"MORNING","time_slot_start":"11:30","patient_name":"Jordan Doe"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 201 {
		t.Fatalf("same-day booking should pass the date check, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateReservation_UnknownService(t *testing.T) {
	h, _, _ := newReservationHandler(&fakeReservationStore{})
	body := `{"service_code":"NOPE","date":"2026-09-15","period":"MORNING","time_slot_start":"09:30","patient_name":"A"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCancelReservation_Success(t *testing.T) {
	store := &fakeReservationStore{}
	h, inv, _ := newReservationHandler(store)

	body := `{"reservation_id":"` + store.createRv.ID.String() + `","reason":"patient request"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations/cancel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"CANCELLED"`) {
		t.Fatalf("expected cancelled reservation, got %s", rec.Body.String())
	}
	if len(inv.reservationCalls) != 1 {
		t.Fatalf("cancel must invalidate once, got %v", inv.reservationCalls)
	}
}

func TestCancelReservation_NotFound(t *testing.T) {
	store := &fakeReservationStore{err: storage.ErrNotFound}
	h, _, _ := newReservationHandler(store)

	body := `{"reservation_id":"` + uuid.NewString() + `"}`
	req := httptest.NewRequest("POST", "/api/v1/public/reservations/cancel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)
	if rec.Code != 404 {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListReservations(t *testing.T) {
	store := &fakeReservationStore{}
	h, _, _ := newReservationHandler(store)

	req := httptest.NewRequest("GET", "/api/v1/admin/reservations?date=2026-09-15", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"reservations":[`) {
		t.Fatalf("expected reservations list, got %s", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/v1/admin/reservations?date=tomorrow", nil)
	rec = httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for a bad date, got %d", rec.Code)
	}
}
