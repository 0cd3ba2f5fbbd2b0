package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinicboard/internal/availability"
	"github.com/clinicboard/clinicboard/internal/model"
	"github.com/clinicboard/clinicboard/internal/storage"
)

// ReservationStore is the write-side surface the handler drives. The
// implementation owns the transactional capacity re-check.
type ReservationStore interface {
	Create(ctx context.Context, p storage.CreateParams) (*model.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Reservation, error)
	ListOn(ctx context.Context, date string) ([]model.Reservation, error)
}

type ReservationHandler struct {
	store       ReservationStore
	catalog     availability.ServiceCatalog
	invalidator availability.Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

func NewReservationHandler(store ReservationStore, catalog availability.ServiceCatalog, inv availability.Invalidator, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{store: store, catalog: catalog, invalidator: inv, logger: logger, now: time.Now}
}

type createReservationRequest struct {
	ServiceCode   string `json:"service_code"`
	Date          string `json:"date"`
	Period        string `json:"period"`
	TimeSlotStart string `json:"time_slot_start"`
	PatientName   string `json:"patient_name"`
	PatientPhone  string `json:"patient_phone"`
}

type reservationItem struct {
	ID                string `json:"id"`
	ServiceCode       string `json:"service_code"`
	Date              string `json:"date"`
	Period            string `json:"period"`
	TimeSlotStart     string `json:"time_slot_start"`
	EstimatedDuration int    `json:"estimated_duration"`
	Status            string `json:"status"`
	PatientName       string `json:"patient_name"`
	CancelledAt       string `json:"cancelled_at,omitempty"`
	CancelReason      string `json:"cancel_reason,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func toReservationItem(rv *model.Reservation) reservationItem {
	item := reservationItem{
		ID:                rv.ID.String(),
		ServiceCode:       rv.ServiceCode,
		Date:              rv.Date,
		Period:            rv.Period,
		TimeSlotStart:     rv.TimeSlotStart,
		EstimatedDuration: rv.EstimatedDuration,
		Status:            string(rv.Status),
		PatientName:       rv.PatientName,
		CancelReason:      rv.CancelReason,
		CreatedAt:         rv.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rv.CancelledAt != nil {
		item.CancelledAt = rv.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Create books a slot. The availability the client saw is advisory; capacity
// is re-checked transactionally here and a losing race returns 409.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "invalid json body")
		return
	}
	req.ServiceCode = strings.TrimSpace(req.ServiceCode)
	req.Date = strings.TrimSpace(req.Date)
	req.Period = strings.ToUpper(strings.TrimSpace(req.Period))
	req.TimeSlotStart = availability.NormalizeClock(req.TimeSlotStart)
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.PatientPhone = strings.TrimSpace(req.PatientPhone)

	if req.ServiceCode == "" || req.Period == "" || req.PatientName == "" {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "service_code, period and patient_name are required")
		return
	}
	day, err := availability.ParseDay(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "date must be a real calendar date in YYYY-MM-DD form")
		return
	}
	// Same UTC-midnight comparison the read path applies: yesterday is never
	// bookable, today still is.
	if day.Before(h.now().UTC().Truncate(24 * time.Hour)) {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "date is in the past")
		return
	}
	if _, err := availability.ParseClock(req.TimeSlotStart); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "time_slot_start must be HH:MM")
		return
	}

	svc, ok, err := h.catalog.ServiceByCode(r.Context(), req.ServiceCode)
	if err != nil {
		writeEngineError(w, h.logger, availability.NewDependencyError("service catalog", err))
		return
	}
	if !ok {
		writeEngineError(w, h.logger, availability.NewServiceNotFound(req.ServiceCode))
		return
	}

	rv, err := h.store.Create(r.Context(), storage.CreateParams{
		Service:       svc,
		Date:          req.Date,
		Period:        req.Period,
		TimeSlotStart: req.TimeSlotStart,
		PatientName:   req.PatientName,
		PatientPhone:  req.PatientPhone,
	})
	if err != nil {
		writeStorageError(w, h.logger, err)
		return
	}

	h.invalidator.OnReservationChanged(r.Context(), rv.ServiceCode, rv.Date)
	writeJSON(w, http.StatusCreated, struct {
		Success     bool            `json:"success"`
		Reservation reservationItem `json:"reservation"`
	}{true, toReservationItem(rv)})
}

type cancelReservationRequest struct {
	ReservationID string `json:"reservation_id"`
	Reason        string `json:"reason"`
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "invalid json body")
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ReservationID))
	if err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "reservation_id must be a UUID")
		return
	}

	rv, err := h.store.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		writeStorageError(w, h.logger, err)
		return
	}

	h.invalidator.OnReservationChanged(r.Context(), rv.ServiceCode, rv.Date)
	writeJSON(w, http.StatusOK, struct {
		Success     bool            `json:"success"`
		Reservation reservationItem `json:"reservation"`
	}{true, toReservationItem(rv)})
}

// List serves the admin day view: every reservation on a date, any status.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if !validDate(date) {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "date must be a real calendar date in YYYY-MM-DD form")
		return
	}

	reservations, err := h.store.ListOn(r.Context(), date)
	if err != nil {
		writeStorageError(w, h.logger, err)
		return
	}
	items := make([]reservationItem, 0, len(reservations))
	for i := range reservations {
		items = append(items, toReservationItem(&reservations[i]))
	}
	writeJSON(w, http.StatusOK, struct {
		Success      bool              `json:"success"`
		Reservations []reservationItem `json:"reservations"`
	}{true, items})
}

// validDate enforces canonical YYYY-MM-DD for list/filter inputs, where past
// dates stay legal (admins browse history).
func validDate(date string) bool {
	_, err := availability.ParseDay(date)
	return err == nil
}
