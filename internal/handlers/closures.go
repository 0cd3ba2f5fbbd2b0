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
	"github.com/clinicboard/clinicboard/libs/auth"
)

// ClosureStore is the admin closure surface.
type ClosureStore interface {
	CreateBatch(ctx context.Context, params []storage.ClosureParams) ([]model.ManualClosure, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*model.ManualClosure, error)
	ListOn(ctx context.Context, date string) ([]model.ManualClosure, error)
	ConflictingReservations(ctx context.Context, date, timeSlotStart string, serviceID *uuid.UUID) ([]model.Reservation, error)
}

// ClosureCatalog resolves service codes both ways; deactivation only has the
// stored service id and needs the code back for cache invalidation.
type ClosureCatalog interface {
	availability.ServiceCatalog
	ServiceCodeByID(ctx context.Context, id uuid.UUID) (string, bool, error)
}

type ClosureHandler struct {
	store       ClosureStore
	catalog     ClosureCatalog
	invalidator availability.Invalidator
	logger      *slog.Logger
}

func NewClosureHandler(store ClosureStore, catalog ClosureCatalog, inv availability.Invalidator, logger *slog.Logger) *ClosureHandler {
	return &ClosureHandler{store: store, catalog: catalog, invalidator: inv, logger: logger}
}

type closureSlot struct {
	Period        string `json:"period"`
	TimeSlotStart string `json:"time_slot_start"`
	TimeSlotEnd   string `json:"time_slot_end,omitempty"`
}

type createClosuresRequest struct {
	Date        string        `json:"date"`
	ServiceCode string        `json:"service_code,omitempty"`
	Reason      string        `json:"reason"`
	Slots       []closureSlot `json:"slots"`
}

type closureItem struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Period        string `json:"period"`
	TimeSlotStart string `json:"time_slot_start"`
	TimeSlotEnd   string `json:"time_slot_end,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CreatedBy     string `json:"created_by,omitempty"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

func toClosureItem(c *model.ManualClosure) closureItem {
	item := closureItem{
		ID:            c.ID.String(),
		Date:          c.ClosureDate,
		Period:        c.Period,
		TimeSlotStart: c.TimeSlotStart,
		TimeSlotEnd:   c.TimeSlotEnd,
		Reason:        c.Reason,
		CreatedBy:     c.CreatedBy,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.ServiceID != nil {
		item.ServiceID = c.ServiceID.String()
	}
	return item
}

// Create closes one or more slots for a date. Omitting service_code closes
// the slots for every service. Existing bookings on the slot are untouched;
// use Conflicts to review them first.
func (h *ClosureHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createClosuresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "invalid json body")
		return
	}
	req.Date = strings.TrimSpace(req.Date)
	req.ServiceCode = strings.TrimSpace(req.ServiceCode)
	if !validDate(req.Date) {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "date must be a real calendar date in YYYY-MM-DD form")
		return
	}
	if len(req.Slots) == 0 {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "at least one slot is required")
		return
	}

	var serviceID *uuid.UUID
	if req.ServiceCode != "" {
		svc, ok, err := h.catalog.ServiceByCode(r.Context(), req.ServiceCode)
		if err != nil {
			writeEngineError(w, h.logger, availability.NewDependencyError("service catalog", err))
			return
		}
		if !ok {
			writeEngineError(w, h.logger, availability.NewServiceNotFound(req.ServiceCode))
			return
		}
		serviceID = &svc.ID
	}

	createdBy := ""
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		createdBy = claims.Sub
	}

	params := make([]storage.ClosureParams, 0, len(req.Slots))
	for _, s := range req.Slots {
		period := strings.ToUpper(strings.TrimSpace(s.Period))
		start := availability.NormalizeClock(s.TimeSlotStart)
		if period == "" {
			writeError(w, http.StatusBadRequest, availability.CodeValidation, "slot period is required")
			return
		}
		if _, err := availability.ParseClock(start); err != nil {
			writeError(w, http.StatusBadRequest, availability.CodeValidation, "slot time_slot_start must be HH:MM")
			return
		}
		params = append(params, storage.ClosureParams{
			Date:          req.Date,
			Period:        period,
			TimeSlotStart: start,
			TimeSlotEnd:   availability.NormalizeClock(s.TimeSlotEnd),
			ServiceID:     serviceID,
			ServiceCode:   req.ServiceCode,
			Reason:        strings.TrimSpace(req.Reason),
			CreatedBy:     createdBy,
		})
	}

	closures, err := h.store.CreateBatch(r.Context(), params)
	if err != nil {
		writeStorageError(w, h.logger, err)
		return
	}

	h.invalidator.OnManualClosureChanged(r.Context(), req.Date, req.ServiceCode)

	items := make([]closureItem, 0, len(closures))
	for i := range closures {
		items = append(items, toClosureItem(&closures[i]))
	}
	writeJSON(w, http.StatusCreated, struct {
		Success  bool          `json:"success"`
		Closures []closureItem `json:"closures"`
	}{true, items})
}

type deactivateClosureRequest struct {
	ClosureID string `json:"closure_id"`
}

// Deactivate reopens a closed slot. The closure row stays for history.
func (h *ClosureHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deactivateClosureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "invalid json body")
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(req.ClosureID))
	if err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "closure_id must be a UUID")
		return
	}

	c, err := h.store.Deactivate(r.Context(), id)
	if err != nil {
		writeStorageError(w, h.logger, err)
		return
	}

	// Per-service closure scopes the invalidation; an unresolvable code falls
	// back to clearing the whole date, which is safe, just coarser.
	serviceCode := ""
	if c.ServiceID != nil {
		if code, ok, err := h.catalog.ServiceCodeByID(r.Context(), *c.ServiceID); err == nil && ok {
			serviceCode = code
		}
	}
	h.invalidator.OnManualClosureChanged(r.Context(), c.ClosureDate, serviceCode)

	writeJSON(w, http.StatusOK, struct {
		Success bool        `json:"success"`
		Closure closureItem `json:"closure"`
	}{true, toClosureItem(c)})
}

func (h *ClosureHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if !validDate(date) {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "date must be a real calendar date in YYYY-MM-DD form")
		return
	}

	closures, err := h.store.ListOn(r.Context(), date)
	if err != nil {
		writeStorageError(w, h.logger, err)
		return
	}
	items := make([]closureItem, 0, len(closures))
	for i := range closures {
		items = append(items, toClosureItem(&closures[i]))
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool          `json:"success"`
		Closures []closureItem `json:"closures"`
	}{true, items})
}

// Conflicts previews the active reservations sitting on a slot before an
// admin closes it.
func (h *ClosureHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	slot := availability.NormalizeClock(q.Get("time_slot_start"))
	if !validDate(date) {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "date must be a real calendar date in YYYY-MM-DD form")
		return
	}
	if _, err := availability.ParseClock(slot); err != nil {
		writeError(w, http.StatusBadRequest, availability.CodeValidation, "time_slot_start must be HH:MM")
		return
	}

	var serviceID *uuid.UUID
	if code := strings.TrimSpace(q.Get("service_code")); code != "" {
		svc, ok, err := h.catalog.ServiceByCode(r.Context(), code)
		if err != nil {
			writeEngineError(w, h.logger, availability.NewDependencyError("service catalog", err))
			return
		}
		if !ok {
			writeEngineError(w, h.logger, availability.NewServiceNotFound(code))
			return
		}
		serviceID = &svc.ID
	}

	reservations, err := h.store.ConflictingReservations(r.Context(), date, slot, serviceID)
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
