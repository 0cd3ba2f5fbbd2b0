package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/internal/storage"
)

type fakeLimitStore struct {
	row      *model.CapacityLimit
	getErr   error
	upserted *model.CapacityLimit
}

func (f *fakeLimitStore) Get(context.Context, uuid.UUID) (*model.CapacityLimit, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.row == nil {
		return nil, storage.ErrNotFound
	}
	return f.row, nil
}

func (f *fakeLimitStore) Upsert(_ context.Context, lim *model.CapacityLimit) error {
	f.upserted = lim
	return nil
}

func newLimitHandler(store *fakeLimitStore) (*LimitHandler, *model.Service) {
	svc := &model.Service{ID: uuid.New(), Code: "CLEANING", Name: "Dental Cleaning", DurationMinutes: 25, BufferMinutes: 5, Active: true}
	h := NewLimitHandler(store, &fakeServiceCatalog{svc: svc}, testLogger())
	return h, svc
}

func TestGetLimit_MissingRowIsUnlimited(t *testing.T) {
	h, _ := newLimitHandler(&fakeLimitStore{})
	req := httptest.NewRequest("GET", "/api/v1/admin/limits?service_code=CLEANING", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"is_active":false`) {
		t.Fatalf("missing row should read as inactive, got %s", rec.Body.String())
	}
}

func TestGetLimit_StoreOutageIsNotConfiguration(t *testing.T) {
	h, _ := newLimitHandler(&fakeLimitStore{getErr: errors.New("connection refused")})
	req := httptest.NewRequest("GET", "/api/v1/admin/limits?service_code=CLEANING", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != 500 {
		t.Fatalf("a store outage must surface as an error, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"limit"`) {
		t.Fatal("no limit payload may be rendered when the read failed")
	}
}

func TestPutLimit_DurationPolicy(t *testing.T) {
	store := &fakeLimitStore{}
	h, svc := newLimitHandler(store)

	body := `{"service_code":"CLEANING","is_active":true,"daily_limit_minutes":240}`
	req := httptest.NewRequest("PUT", "/api/v1/admin/limits", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Put(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.upserted == nil || store.upserted.ServiceID != svc.ID {
		t.Fatal("limit not stored for the resolved service")
	}
	if store.upserted.DailyLimitMinutes == nil || *store.upserted.DailyLimitMinutes != 240 {
		t.Fatalf("wrong stored limit: %+v", store.upserted)
	}
}

func TestPutLimit_Validation(t *testing.T) {
	store := &fakeLimitStore{}
	h, _ := newLimitHandler(store)

	cases := []string{
		// active without any dimension
		`{"service_code":"CLEANING","is_active":true}`,
		// both dimensions at once
		`{"service_code":"CLEANING","is_active":true,"daily_limit":10,"daily_limit_minutes":240}`,
		// non-positive values
		`{"service_code":"CLEANING","is_active":true,"daily_limit":0}`,
		`{"service_code":"CLEANING","is_active":true,"daily_limit_minutes":-30}`,
		// soft limit above the hard one
		`{"service_code":"CLEANING","is_active":true,"daily_limit":5,"soft_daily_limit":9}`,
	}
	for i, body := range cases {
		req := httptest.NewRequest("PUT", "/api/v1/admin/limits", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.Put(rec, req)
		if rec.Code != 400 {
			t.Fatalf("case %d: expected 400, got %d", i, rec.Code)
		}
	}
	if store.upserted != nil {
		t.Fatal("invalid limits must not be stored")
	}
}

func TestPutLimit_DeactivateKeepsFields(t *testing.T) {
	store := &fakeLimitStore{}
	h, _ := newLimitHandler(store)

	body := `{"service_code":"CLEANING","is_active":false,"daily_limit":10}`
	req := httptest.NewRequest("PUT", "/api/v1/admin/limits", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Put(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.upserted == nil || store.upserted.IsActive {
		t.Fatal("deactivated limit should be stored inactive")
	}
}
